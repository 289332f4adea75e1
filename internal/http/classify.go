package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/52poke/tmio/internal/api"
	"github.com/52poke/tmio/internal/cache"
)

const apiPrefix = "/api/"

type RequestInfo struct {
	Cacheable bool
	Path      string
	Query     url.Values
	TTL       time.Duration
	Reason    string
}

func (i RequestInfo) Request() api.Request {
	return api.Request{Path: i.Path, Query: i.Query, TTL: i.TTL}
}

func ClassifyRequest(r *http.Request) RequestInfo {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return RequestInfo{Cacheable: false, Reason: "method-not-get"}
	}
	p, ok := APIPath(r.URL)
	if !ok {
		return RequestInfo{Cacheable: false, Reason: "not-api"}
	}
	if p == "/" {
		return RequestInfo{Cacheable: false, Reason: "empty-path"}
	}
	return RequestInfo{
		Cacheable: true,
		Path:      p,
		Query:     cache.StripTracking(r.URL.Query()),
		TTL:       api.TTLFor(p),
	}
}

// APIPath returns the request path relative to /api, normalized.
func APIPath(u *url.URL) (string, bool) {
	if !strings.HasPrefix(u.Path, apiPrefix) {
		return "", false
	}
	return cache.NormalizePath(strings.TrimPrefix(u.Path, "/api")), true
}
