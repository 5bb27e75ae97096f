// Package metrics provides Prometheus collectors for the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the orchestrator reports into.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheEvents     *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
	Fallbacks       prometheus.Counter
}

// New registers all collectors against reg and returns them. Pass
// prometheus.DefaultRegisterer for process-wide metrics, or a private
// registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagegen_requests_total",
			Help: "Image generation requests by backend, operation and outcome.",
		}, []string{"backend", "operation", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagegen_request_duration_seconds",
			Help:    "End-to-end request latency by backend and operation.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"backend", "operation"}),
		CacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagegen_cache_events_total",
			Help: "Result cache lookups by outcome (hit, miss, store).",
		}, []string{"outcome"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagegen_rate_limited_total",
			Help: "Admissions rejected by the per-backend rate limiter.",
		}, []string{"backend"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "imagegen_fallbacks_total",
			Help: "Times the orchestrator moved to the next candidate backend.",
		}),
	}
}
