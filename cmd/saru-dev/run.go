package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/devserver"
	"github.com/eugener/saru/internal/hostabi/localhost"
	"github.com/eugener/saru/internal/runtime"
	"github.com/eugener/saru/internal/telemetry"
	"github.com/eugener/saru/internal/worker"
)

// evictInterval governs how often the reference host sweeps stale circuit
// breakers and rate limiters out of its registries.
const evictInterval = time.Minute

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting saru-dev", "version", version, "addr", cfg.Server.Addr)

	ctx := context.Background()
	host, err := localhost.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer host.Close()

	slog.Info("reference host ready",
		"backends", len(cfg.Backends),
		"default_backend", cfg.DefaultBackend,
		"dictionaries", len(cfg.Dictionaries),
	)

	hostFactory := func(ctx context.Context, r *http.Request) (runtime.SessionHost, error) {
		return localhost.NewSession(host, r)
	}
	rt := runtime.New(hostFactory, runtime.ReverseProxyHandler(cfg.DefaultBackend))
	transformRt := runtime.New(hostFactory, runtime.TransformPipeHandler())

	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promRegistry.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(promRegistry)
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
		slog.Info("prometheus metrics enabled")
	}

	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("saru-dev")
			slog.Info("opentelemetry tracing enabled", "endpoint", endpoint, "sample_rate", sampleRate)
		}
	}

	handler := devserver.New(devserver.Deps{
		Runtime:          rt,
		TransformRuntime: transformRt,
		Metrics:          metrics,
		MetricsHandler:   metricsHandler,
		Tracer:           tracer,
		ReadyCheck:       host.Ready,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	runner := worker.NewRunner(
		&httpServerWorker{srv: srv},
		&evictStaleWorker{host: host, interval: evictInterval},
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- runner.Run(workerCtx) }()

	slog.Info("saru-dev ready", "addr", cfg.Server.Addr,
		"debug_endpoint", "POST /debug/fetch",
		"debug_transform_endpoint", "POST /debug/fetch/transform",
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-workerDone:
		if err != nil {
			slog.Error("worker failed", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		workerCancel()
		return err
	}

	workerCancel()
	if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker shutdown error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("saru-dev stopped")
	return nil
}

// httpServerWorker adapts the dev harness's http.Server to worker.Worker.
// Run returns nil once ctx is cancelled without shutting the server down
// (run does that), or the listener's error if it fails first.
type httpServerWorker struct {
	srv *http.Server
}

func (w *httpServerWorker) Name() string { return "http" }

func (w *httpServerWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := w.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// evictStaleWorker adapts Host.EvictStale's sweep loop to worker.Worker.
type evictStaleWorker struct {
	host     *localhost.Host
	interval time.Duration
}

func (w *evictStaleWorker) Name() string { return "evict-stale" }

func (w *evictStaleWorker) Run(ctx context.Context) error {
	w.host.EvictStale(ctx, w.interval)
	return nil
}
