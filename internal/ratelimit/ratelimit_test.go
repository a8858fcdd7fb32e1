package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()
	l := newLimiter(3)

	for i := range 3 {
		r := l.Allow()
		if !r.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	r := l.Allow()
	if r.Allowed {
		t.Error("4th request should be denied")
	}
	if r.RetryAfterSeconds <= 0 {
		t.Error("RetryAfterSeconds should be positive")
	}
}

func TestLimiter_RefillAfterTime(t *testing.T) {
	t.Parallel()
	l := newLimiter(1)

	r := l.Allow()
	if !r.Allowed {
		t.Fatal("first request should be allowed")
	}

	r = l.Allow()
	if r.Allowed {
		t.Fatal("second request should be denied")
	}

	// Manually advance the bucket's last fill time.
	l.mu.Lock()
	l.bucket.lastFill = time.Now().Add(-2 * time.Second)
	l.mu.Unlock()

	r = l.Allow()
	if !r.Allowed {
		t.Error("request should be allowed after refill")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()
	l := newLimiter(0)

	r := l.Allow()
	if !r.Allowed {
		t.Error("unlimited limiter should always allow")
	}
	if l.bucket != nil {
		t.Error("bucket should be nil for unlimited limiter")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := newLimiter(1000)

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			l.Allow()
		})
	}
	wg.Wait()
}

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	l1 := r.GetOrCreate("backend1", 10)
	l2 := r.GetOrCreate("backend1", 10)
	if l1 != l2 {
		t.Error("same backend should return the same limiter")
	}

	l3 := r.GetOrCreate("backend2", 10)
	if l1 == l3 {
		t.Error("different backends should get distinct limiters")
	}
}

func TestRegistry_EvictStale(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.GetOrCreate("fresh", 10)
	r.GetOrCreate("stale", 10)

	// Manually make "stale" entry old.
	r.mu.Lock()
	r.limiters["stale"].mu.Lock()
	r.limiters["stale"].lastUsed = time.Now().Add(-2 * time.Hour)
	r.limiters["stale"].mu.Unlock()
	r.mu.Unlock()

	evicted := r.EvictStale(time.Now().Add(-1 * time.Hour))
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}

	r.mu.RLock()
	_, hasFresh := r.limiters["fresh"]
	_, hasStale := r.limiters["stale"]
	r.mu.RUnlock()

	if !hasFresh {
		t.Error("fresh limiter should not be evicted")
	}
	if hasStale {
		t.Error("stale limiter should be evicted")
	}
}

func TestBucket_RefillNegativeElapsed(t *testing.T) {
	t.Parallel()
	l := newLimiter(10)
	l.mu.Lock()
	l.bucket.tokens = 5
	old := l.bucket.lastFill
	l.bucket.lastFill = time.Now().Add(time.Hour) // future
	l.mu.Unlock()

	r := l.Allow()
	if !r.Allowed {
		t.Error("should be allowed (refill skipped for negative elapsed)")
	}

	// Restore for cleanup.
	l.mu.Lock()
	l.bucket.lastFill = old
	l.mu.Unlock()
}

func TestBucket_RetryAfterAvailable(t *testing.T) {
	t.Parallel()
	l := newLimiter(60) // 60 tokens/sec
	for range 60 {
		l.Allow()
	}
	r := l.Allow()
	if r.Allowed {
		t.Fatal("should be denied")
	}
	if r.RetryAfterSeconds <= 0 {
		t.Error("retry after should be positive")
	}
}

func BenchmarkAllow(b *testing.B) {
	l := newLimiter(1_000_000) // high limit so it never denies
	for b.Loop() {
		l.Allow()
	}
}
