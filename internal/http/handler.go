package httpx

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/52poke/tmio/internal/api"
	"github.com/52poke/tmio/internal/logging"
	"github.com/52poke/tmio/internal/tmio"
	"github.com/rs/zerolog"
)

const cacheStatusHeader = "X-Tmio-Cache"

type Handler struct {
	Service *api.Service
	Proxy   *httputil.ReverseProxy
	Log     zerolog.Logger
}

// NewHandler serves cacheable API reads through svc and reverse-proxies
// everything else to the upstream API root, stamping the given user agent.
func NewHandler(svc *api.Service, upstreamBaseURL, userAgent string, logger *zerolog.Logger) (*Handler, error) {
	u, err := url.Parse(upstreamBaseURL)
	if err != nil {
		return nil, err
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			apiPath, _ := APIPath(pr.In.URL)
			pr.SetURL(u)
			pr.Out.URL.Path = u.Path + apiPath
			pr.Out.URL.RawPath = ""
			pr.Out.Host = u.Host
			pr.Out.Header.Set("User-Agent", userAgent)
		},
	}
	return &Handler{
		Service: svc,
		Proxy:   proxy,
		Log:     logging.OrDefault(logger).With().Str("component", "httpx").Logger(),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := ClassifyRequest(r)
	if !info.Cacheable {
		if info.Reason == "not-api" {
			http.NotFound(w, r)
			return
		}
		h.Proxy.ServeHTTP(w, r)
		return
	}

	res, err := h.Service.Fetch(r.Context(), info.Request())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(cacheStatusHeader, res.Status)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.Body)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		statusErr *tmio.StatusError
		apiErr    *tmio.APIError
	)
	switch {
	case errors.As(err, &apiErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(apiErr.Body)
	case errors.As(err, &statusErr):
		w.WriteHeader(statusErr.Status)
		_, _ = w.Write(statusErr.Body)
	case r.Context().Err() != nil:
		// client went away
	default:
		h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream fetch failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
}
