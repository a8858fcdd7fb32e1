package localhost

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var errCacheMiss = errors.New("cache miss")

// cacheEntry is a persisted HTTP response, keyed by the normalized request
// it answers, honoring the guest's CacheOverride (spec §6 bit encoding).
type cacheEntry struct {
	Status       int
	Headers      map[string][]string
	Body         []byte
	SurrogateKey string
	StoredAt     time.Time
	TTL          time.Duration
	SWR          time.Duration
}

// Fresh reports whether the entry is within its TTL window at now.
func (e *cacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.StoredAt.Add(e.TTL))
}

// Stale reports whether the entry is expired but within its
// stale-while-revalidate window at now.
func (e *cacheEntry) Stale(now time.Time) bool {
	if e.Fresh(now) {
		return false
	}
	return now.Before(e.StoredAt.Add(e.TTL).Add(e.SWR))
}

// cachePut persists or replaces the cached response for key.
func (s *store) cachePut(ctx context.Context, key string, e *cacheEntry) error {
	headersJSON, err := json.Marshal(e.Headers)
	if err != nil {
		return err
	}
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, status, headers_json, body, surrogate_key, stored_at, ttl_seconds, swr_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   status = excluded.status, headers_json = excluded.headers_json, body = excluded.body,
		   surrogate_key = excluded.surrogate_key, stored_at = excluded.stored_at,
		   ttl_seconds = excluded.ttl_seconds, swr_seconds = excluded.swr_seconds`,
		key, e.Status, string(headersJSON), e.Body, e.SurrogateKey,
		e.StoredAt.Unix(), int64(e.TTL.Seconds()), int64(e.SWR.Seconds()),
	)
	return err
}

// cacheGet returns the cached entry for key, or errCacheMiss.
func (s *store) cacheGet(ctx context.Context, key string) (*cacheEntry, error) {
	var (
		status                   int
		headersJSON              string
		body                     []byte
		surrogateKey             string
		storedAtUnix, ttl, swr   int64
	)
	err := s.read.QueryRowContext(ctx,
		`SELECT status, headers_json, body, surrogate_key, stored_at, ttl_seconds, swr_seconds
		 FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&status, &headersJSON, &body, &surrogateKey, &storedAtUnix, &ttl, &swr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var headers map[string][]string
	if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
		return nil, err
	}
	return &cacheEntry{
		Status:       status,
		Headers:      headers,
		Body:         body,
		SurrogateKey: surrogateKey,
		StoredAt:     time.Unix(storedAtUnix, 0).UTC(),
		TTL:          time.Duration(ttl) * time.Second,
		SWR:          time.Duration(swr) * time.Second,
	}, nil
}

// cachePurgeSurrogateKey deletes every entry tagged with surrogateKey,
// honoring the PCI cache-override bit's purge semantics.
func (s *store) cachePurgeSurrogateKey(ctx context.Context, surrogateKey string) (int64, error) {
	result, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE surrogate_key = ?`, surrogateKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
