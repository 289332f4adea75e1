package httpx

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/52poke/tmio/internal/api"
	"github.com/52poke/tmio/internal/cache"
	"github.com/52poke/tmio/internal/tmio"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler *Handler
	mr      *miniredis.Miniredis
	calls   *atomic.Int32
	lastUA  *atomic.Value
}

func newFixture(t *testing.T, upstream http.HandlerFunc) *fixture {
	t.Helper()
	calls := &atomic.Int32{}
	lastUA := &atomic.Value{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lastUA.Store(r.Header.Get("User-Agent"))
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := zerolog.New(&bytes.Buffer{})
	client, err := tmio.NewClient(tmio.Options{BaseURL: srv.URL + "/api", UserAgent: "tester"})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	svc := api.NewService(api.Options{
		Cache: cache.New(cache.Config{
			Store:  cache.NewRedisStore(cache.NewRedisClient(cache.RedisOptions{Addr: mr.Addr(), Timeout: time.Second})),
			Logger: &logger,
		}),
		Upstream: client,
		Logger:   &logger,
	})
	h, err := NewHandler(svc, client.BaseURL(), client.UserAgent(), &logger)
	require.NoError(t, err)
	return &fixture{handler: h, mr: mr, calls: calls, lastUA: lastUA}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHandlerMissThenHit(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/player/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"accountid":"abc"}`))
	})

	rr := f.do(http.MethodGet, "/api/player/abc")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get(cacheStatusHeader))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"accountid":"abc"}`, rr.Body.String())

	rr = f.do(http.MethodGet, "/api/player/abc?utm_source=x")
	assert.Equal(t, "HIT", rr.Header().Get(cacheStatusHeader))
	assert.JSONEq(t, `{"accountid":"abc"}`, rr.Body.String())

	assert.EqualValues(t, 1, f.calls.Load())
	assert.Equal(t, "tester | via tmio-go", f.lastUA.Load())
}

func TestHandlerHeadHasNoBody(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ads":[]}`))
	})

	rr := f.do(http.MethodHead, "/api/ads")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.Bytes())
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
	}{
		{"not found", http.StatusNotFound, `{"message":"no"}`, http.StatusNotFound},
		{"rate limited", http.StatusTooManyRequests, `slow`, http.StatusTooManyRequests},
		{"api error", http.StatusOK, `{"error":"Unknown club"}`, http.StatusNotFound},
		{"server error", http.StatusInternalServerError, `boom`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			rr := f.do(http.MethodGet, "/api/club/1")
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.body, rr.Body.String())
			assert.Empty(t, rr.Header().Get(cacheStatusHeader))
		})
	}
}

func TestHandlerTransportFailure(t *testing.T) {
	logger := zerolog.New(io.Discard)
	client, err := tmio.NewClient(tmio.Options{BaseURL: "http://127.0.0.1:1/api", UserAgent: "tester", Timeout: time.Second})
	require.NoError(t, err)
	svc := api.NewService(api.Options{Cache: cache.New(cache.Config{Logger: &logger}), Upstream: client, Logger: &logger})
	h, err := NewHandler(svc, client.BaseURL(), client.UserAgent(), &logger)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ads", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHandlerProxiesUncacheable(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/player/abc", r.URL.Path)
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	rr := f.do(http.MethodPost, "/api/player/abc")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "tester | via tmio-go", f.lastUA.Load())
}

func TestHandlerOutsideAPI(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	rr := f.do(http.MethodGet, "/favicon.ico")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.EqualValues(t, 0, f.calls.Load())
}
