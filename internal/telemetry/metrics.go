// Package telemetry provides observability primitives for the reference
// host and dev harness.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the runtime.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec // labels: method, path, status (dev-harness HTTP surface)
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	DispatchIterations    prometheus.Counter
	PendingRequests       prometheus.Gauge
	PendingBodyReads      prometheus.Gauge
	BodyChunksRead        prometheus.Counter
	FetchEventTransitions *prometheus.CounterVec // labels: from, to
	ActiveFetchEvents     prometheus.Gauge
	BackendRequestDuration *prometheus.HistogramVec // labels: backend
	BackendErrors          *prometheus.CounterVec   // labels: backend
	DictionaryCacheHits    prometheus.Counter
	DictionaryCacheMisses  prometheus.Counter
	RateLimitRejects       *prometheus.CounterVec // labels: backend
	CircuitBreakerState    *prometheus.GaugeVec   // labels: backend (value 0=closed, 1=open, 2=half_open)
	CircuitBreakerRejects  *prometheus.CounterVec // labels: backend
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "http_requests_total",
			Help:      "Total dev-harness HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "saru",
			Name:                            "http_request_duration_seconds",
			Help:                            "Dev-harness HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "saru",
			Name:      "http_active_requests",
			Help:      "Number of currently active dev-harness HTTP requests.",
		}),

		DispatchIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "dispatch_iterations_total",
			Help:      "Total iterations of the fetch dispatch loop.",
		}),

		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "saru",
			Name:      "pending_requests",
			Help:      "Current depth of the dispatch loop's pending-request queue.",
		}),

		PendingBodyReads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "saru",
			Name:      "pending_body_reads",
			Help:      "Current depth of the dispatch loop's pending-body-read queue.",
		}),

		BodyChunksRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "body_chunks_read_total",
			Help:      "Total chunks read off native body streams.",
		}),

		FetchEventTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "fetchevent_transitions_total",
			Help:      "FetchEvent state machine transitions.",
		}, []string{"from", "to"}),

		ActiveFetchEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "saru",
			Name:      "active_fetchevents",
			Help:      "Number of currently active FetchEvents.",
		}),

		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "saru",
			Name:                            "backend_request_duration_seconds",
			Help:                            "Outbound backend request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"backend"}),

		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "backend_errors_total",
			Help:      "Total outbound backend request errors.",
		}, []string{"backend"}),

		DictionaryCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "dictionary_cache_hits_total",
			Help:      "Total dictionary lookup cache hits.",
		}),

		DictionaryCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "dictionary_cache_misses_total",
			Help:      "Total dictionary lookup cache misses (host round trip).",
		}),

		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "ratelimit_rejects_total",
			Help:      "Total outbound requests rejected by the per-backend limiter.",
		}, []string{"backend"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "saru",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per backend (0=closed, 1=open, 2=half_open).",
		}, []string{"backend"}),

		CircuitBreakerRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saru",
			Name:      "circuit_breaker_rejects_total",
			Help:      "Total outbound requests rejected by the circuit breaker.",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.DispatchIterations,
		m.PendingRequests,
		m.PendingBodyReads,
		m.BodyChunksRead,
		m.FetchEventTransitions,
		m.ActiveFetchEvents,
		m.BackendRequestDuration,
		m.BackendErrors,
		m.DictionaryCacheHits,
		m.DictionaryCacheMisses,
		m.RateLimitRejects,
		m.CircuitBreakerState,
		m.CircuitBreakerRejects,
	)

	return m
}
