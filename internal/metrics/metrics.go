// Package metrics holds the Prometheus collectors shared by the cache,
// the upstream client and the proxy.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

var (
	// CacheLookups counts facade lookups by result (hit/miss).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmio_cache_lookups_total",
			Help: "Cache lookups",
		},
		[]string{"result"},
	)

	// CacheErrors counts store failures swallowed by the facade, by operation.
	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmio_cache_errors_total",
			Help: "Cache store errors",
		},
		[]string{"op"},
	)

	// UpstreamRequests counts requests sent to Trackmania.io by outcome.
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmio_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"status"},
	)

	// UpstreamLatency records upstream request duration in seconds.
	UpstreamLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmio_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LockContention counts fills that found the per-key lock already held.
	LockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tmio_lock_contention_total",
			Help: "Fill lock contention",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookups,
		CacheErrors,
		UpstreamRequests,
		UpstreamLatency,
		LockContention,
	)
}
