// Package localhost is the reference Host implementation (spec §6): a real
// SQLite-backed Dictionary/cache store, real outbound HTTP calls to
// configured backends (circuit-broken and rate-limited), and in-memory
// request/response/body handle tables. It exists for tests and the dev
// harness; production builds bind internal/hostabi.Host to the sandboxed
// engine's imported functions instead.
package localhost

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/dnscache"

	"github.com/eugener/saru/internal/circuitbreaker"
	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/ratelimit"
)

// Host holds the reference host's resources shared across every FetchEvent:
// the SQLite store, backend clients, and their breaker/limiter registries.
// hostabi.Host itself, by contrast, must never be called concurrently on the
// same instance — so each incoming request gets its own *Session built by
// NewSession, which carries the request-scoped handle tables and defers to
// Host for everything shared.
type Host struct {
	cfg   *config.Config
	store *store

	backends map[string]*backendClient
	breakers *circuitbreaker.Registry
	limiters *ratelimit.Registry
	resolver *dnscache.Resolver
	geo      *geoDB
}

// New opens (or creates) the reference host's SQLite store, seeds configured
// dictionaries, and builds one backendClient per configured backend.
func New(ctx context.Context, cfg *config.Config) (*Host, error) {
	st, err := openStore(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("localhost: open store: %w", err)
	}

	for _, d := range cfg.Dictionaries {
		if err := st.seedDictionary(ctx, d.Name, d.Entries); err != nil {
			st.Close()
			return nil, fmt.Errorf("localhost: seed dictionary %q: %w", d.Name, err)
		}
	}

	// Secret stores reuse the dictionary_entries table (supplemented
	// feature: internal/wiring.SecretStore opens them through the same
	// DictionaryOpen/DictionaryGet host calls), grouped by Store name.
	secretsByStore := make(map[string]map[string]string)
	for _, sec := range cfg.Secrets {
		bucket, ok := secretsByStore[sec.Store]
		if !ok {
			bucket = make(map[string]string)
			secretsByStore[sec.Store] = bucket
		}
		bucket[sec.Key] = sec.Value
	}
	for name, entries := range secretsByStore {
		if err := st.seedDictionary(ctx, name, entries); err != nil {
			st.Close()
			return nil, fmt.Errorf("localhost: seed secret store %q: %w", name, err)
		}
	}

	resolver := &dnscache.Resolver{}

	h := &Host{
		cfg:      cfg,
		store:    st,
		backends: make(map[string]*backendClient, len(cfg.Backends)),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
		limiters: ratelimit.NewRegistry(),
		resolver: resolver,
		geo:      loadGeoDB(cfg.Geo.DatabasePath),
	}

	for _, b := range cfg.Backends {
		h.backends[b.Name] = newBackendClient(b, resolver)
		h.limiters.GetOrCreate(b.Name, b.MaxRPS)
	}

	return h, nil
}

// Close releases the store's database connections.
func (h *Host) Close() error {
	return h.store.Close()
}

// Ready reports whether the reference host's dependencies (currently just
// the SQLite store) are reachable, for the dev harness's /readyz.
func (h *Host) Ready(ctx context.Context) error {
	return h.store.Ping(ctx)
}

func (h *Host) backendFor(name string) (*backendClient, error) {
	if name == "" {
		name = h.cfg.DefaultBackend
	}
	b, ok := h.backends[name]
	if !ok {
		return nil, fmt.Errorf("localhost: unknown backend %q", name)
	}
	return b, nil
}

func evictStaleLoop(ctx context.Context, interval time.Duration, evict func(cutoff time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evict(now.Add(-interval))
		}
	}
}

// EvictStale runs the breaker/limiter registries' stale-eviction sweep every
// interval until ctx is cancelled. Intended to run as one goroutine in the
// dev harness's errgroup.
func (h *Host) EvictStale(ctx context.Context, interval time.Duration) {
	evictStaleLoop(ctx, interval, func(cutoff time.Time) {
		h.breakers.EvictStale(cutoff)
		h.limiters.EvictStale(cutoff)
	})
}
