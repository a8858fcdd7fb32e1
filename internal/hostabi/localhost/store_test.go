package localhost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store {
	t.Helper()
	st, err := openStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_PingAndClose(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSeedAndGetDictionary(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	err := st.seedDictionary(ctx, "pricing", map[string]string{"tier": "gold"})
	require.NoError(t, err)

	v, err := st.dictionaryGet(ctx, "pricing", "tier")
	require.NoError(t, err)
	assert.Equal(t, "gold", v)

	_, err = st.dictionaryGet(ctx, "pricing", "missing")
	assert.ErrorIs(t, err, errDictKeyNotFound)
}

func TestSeedDictionary_UpsertsOnReseed(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.seedDictionary(ctx, "flags", map[string]string{"beta": "off"}))
	require.NoError(t, st.seedDictionary(ctx, "flags", map[string]string{"beta": "on"}))

	v, err := st.dictionaryGet(ctx, "flags", "beta")
	require.NoError(t, err)
	assert.Equal(t, "on", v)
}

func TestCachePutGetPurge(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	entry := &cacheEntry{
		Status:       200,
		Headers:      map[string][]string{"Content-Type": {"text/plain"}},
		Body:         []byte("hello"),
		SurrogateKey: "home-page",
		StoredAt:     time.Now(),
		TTL:          time.Minute,
		SWR:          time.Minute,
	}
	require.NoError(t, st.cachePut(ctx, "GET /", entry))

	got, err := st.cacheGet(ctx, "GET /")
	require.NoError(t, err)
	assert.Equal(t, entry.Status, got.Status)
	assert.Equal(t, entry.Body, got.Body)
	assert.True(t, got.Fresh(time.Now()))

	n, err := st.cachePurgeSurrogateKey(ctx, "home-page")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = st.cacheGet(ctx, "GET /")
	assert.ErrorIs(t, err, errCacheMiss)
}

func TestCacheEntry_StaleWindow(t *testing.T) {
	t.Parallel()
	e := &cacheEntry{
		StoredAt: time.Now().Add(-90 * time.Second),
		TTL:      60 * time.Second,
		SWR:      60 * time.Second,
	}
	now := time.Now()
	assert.False(t, e.Fresh(now))
	assert.True(t, e.Stale(now))

	e.StoredAt = now.Add(-200 * time.Second)
	assert.False(t, e.Stale(now))
}
