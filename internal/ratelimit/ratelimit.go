// Package ratelimit implements per-backend outbound request throttling with
// a lazy-refill token bucket (no background goroutine), used by the
// reference host to enforce each backend's configured max_rps.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Remaining         int64
	RetryAfterSeconds float64
}

// Bucket is a token bucket with lazy refill (no background goroutine).
type Bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(rps int) *Bucket {
	return &Bucket{
		tokens:   float64(rps),
		max:      float64(rps),
		rate:     float64(rps),
		lastFill: time.Now(),
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// tryConsume attempts to consume one token.
func (b *Bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns seconds until one token is available.
func (b *Bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter guards a single backend's outbound request rate.
type Limiter struct {
	mu       sync.Mutex
	bucket   *Bucket // nil if unlimited
	lastUsed time.Time
}

func newLimiter(maxRPS int) *Limiter {
	l := &Limiter{lastUsed: time.Now()}
	if maxRPS > 0 {
		l.bucket = newBucket(maxRPS)
	}
	return l
}

// Allow consumes one outbound-request slot.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastUsed = now

	if l.bucket == nil {
		return Result{Allowed: true}
	}
	remaining, ok := l.bucket.tryConsume(now)
	if ok {
		return Result{Allowed: true, Remaining: remaining}
	}
	return Result{Allowed: false, RetryAfterSeconds: l.bucket.retryAfter()}
}

// Registry manages per-backend Limiters.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates a new rate limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// GetOrCreate returns the limiter for backend, creating one bounded at
// maxRPS (0 = unlimited) if it doesn't exist yet.
func (r *Registry) GetOrCreate(backend string, maxRPS int) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[backend]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[backend]; ok {
		return l
	}
	l = newLimiter(maxRPS)
	r.limiters[backend] = l
	return l
}

// EvictStale removes limiters not used since cutoff.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}
