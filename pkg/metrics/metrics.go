// Package metrics exposes Prometheus instrumentation for the probe
// pipeline. All metrics register on the default registry at package load;
// StartServer publishes them when a metrics address is configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for TilesProbed.
const (
	OutcomeCovered   = "covered"
	OutcomeUncovered = "uncovered"
	OutcomeFailed    = "failed"
)

var (
	// RequestsTotal counts tile requests by response class
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecov_requests_total",
			Help: "Total number of tile requests by response class",
		},
		[]string{"class"}, // "2xx", "3xx", "4xx", "5xx", "429", "error"
	)

	// TilesProbed counts tiles that reached a terminal outcome
	TilesProbed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecov_tiles_probed_total",
			Help: "Total number of tiles probed to a terminal outcome",
		},
		[]string{"outcome"}, // "covered", "uncovered", "failed"
	)

	// RetriesTotal counts retry attempts after a failed tile request
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tilecov_retries_total",
			Help: "Total number of tile request retries",
		},
	)

	// RequestDuration tracks the wire time of individual tile requests
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tilecov_request_duration_seconds",
			Help:    "Tile request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BatchCommitDuration tracks how long outcome batches take to commit
	BatchCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tilecov_batch_commit_seconds",
			Help:    "Outcome batch commit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// RateWaitDuration tracks time spent waiting on the rate limiter
	RateWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tilecov_rate_wait_seconds",
			Help:    "Time spent waiting for a rate limiter slot in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)
)

// StatusClass buckets an HTTP status code into a metric label. 429 gets
// its own class so throttling is visible separately from other 4xx;
// zero (no response at all) reports as "error".
func StatusClass(code int) string {
	switch {
	case code == 429:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "error"
	}
}

// ObserveRequest records one completed tile request.
func ObserveRequest(code int, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(StatusClass(code)).Inc()
	RequestDuration.Observe(elapsed.Seconds())
}

// ObserveOutcome records one terminal tile outcome.
func ObserveOutcome(outcome string) {
	TilesProbed.WithLabelValues(outcome).Inc()
}

func handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves /metrics and /health on the given address. It
// blocks until the server exits, so callers run it in a goroutine.
func StartServer(addr string) error {
	return http.ListenAndServe(addr, handler())
}
