package purge

import (
	"net/http"
	"strings"

	"github.com/52poke/tmio/internal/api"
	"github.com/52poke/tmio/internal/cache"
	httpx "github.com/52poke/tmio/internal/http"
	"github.com/52poke/tmio/internal/logging"
	"github.com/rs/zerolog"
)

const (
	Method        = "PURGE"
	refreshHeader = "X-Purge-Refresh"
)

// Handler drops the cached response for PURGE /api/<path>?<query>, or
// refetches it when X-Purge-Refresh is set.
type Handler struct {
	Service *api.Service
	Log     zerolog.Logger
}

func NewHandler(svc *api.Service, logger *zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Log:     logging.OrDefault(logger).With().Str("component", "purge").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != Method {
		w.Header().Set("Allow", Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := httpx.APIPath(r.URL)
	if !ok || p == "/" {
		http.Error(w, "path must be under /api/", http.StatusBadRequest)
		return
	}
	req := api.Request{
		Path:  p,
		Query: cache.StripTracking(r.URL.Query()),
		TTL:   api.TTLFor(p),
	}

	ctx := r.Context()
	if !wantsRefresh(r) {
		h.Service.Invalidate(ctx, req)
		h.Log.Info().Str("key", h.Service.Key(req)).Msg("purged")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_, refreshed, err := h.Service.Refresh(ctx, req)
	if err != nil {
		h.Log.Warn().Err(err).Str("path", p).Msg("refresh failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !refreshed {
		h.Log.Debug().Str("path", p).Msg("refresh skipped, fill in progress elsewhere")
	}
	w.WriteHeader(http.StatusNoContent)
}

func wantsRefresh(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.Header.Get(refreshHeader))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
