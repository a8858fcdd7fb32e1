// Package devserver implements the dev harness's HTTP surface: health
// checks, Prometheus metrics, and a debug endpoint that drives a synthetic
// downstream request through the runtime core end-to-end without a real
// guest engine attached.
package devserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/saru/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// FetchRunner drives one downstream request through a FetchEvent and the
// fetch dispatch loop, returning the resulting HTTP response. Implemented
// by internal/runtime.Runtime.
type FetchRunner interface {
	HandleFetch(ctx context.Context, r *http.Request) (*http.Response, error)
}

// Deps holds all dependencies for the dev-harness HTTP server.
type Deps struct {
	Runtime          FetchRunner
	TransformRuntime FetchRunner        // nil = no /debug/fetch/transform endpoint
	Metrics          *telemetry.Metrics // nil = no Prometheus metrics
	MetricsHandler   http.Handler       // nil = no /metrics endpoint
	Tracer           trace.Tracer       // nil = no distributed tracing
	ReadyCheck       ReadyChecker       // nil = always ready
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.securityHeaders)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	if deps.Tracer != nil {
		r.Use(tracingMiddleware(deps.Tracer))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.Runtime != nil {
		r.HandleFunc("/debug/fetch", s.handleDebugFetch)
	}
	if deps.TransformRuntime != nil {
		r.HandleFunc("/debug/fetch/transform", s.handleDebugFetchTransform)
	}

	return r
}

type server struct {
	deps Deps
}
