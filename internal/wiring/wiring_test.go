package wiring_test

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/hostabi/localhost"
	"github.com/eugener/saru/internal/wiring"
)

func newTestSession(t *testing.T) *localhost.Session {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Dictionaries: []config.DictionaryEntry{
			{Name: "pricing", Entries: map[string]string{"tier": "gold"}},
		},
		Secrets: []config.SecretEntry{
			{Store: "default", Key: "api_token", Value: "shh"},
		},
	}
	host, err := localhost.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	downstream := httptest.NewRequest("GET", "/", nil)
	s, err := localhost.NewSession(host, downstream)
	require.NoError(t, err)
	return s
}

func TestDictionary_GetCachesAndReportsMiss(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	d, err := wiring.OpenDictionary(ctx, s, "pricing", 16)
	require.NoError(t, err)

	v, ok, err := d.Get(ctx, "tier")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gold", v)

	_, ok, err = d.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretStore_SharesDictionaryTableByStoreName(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	store, err := wiring.OpenSecretStore(ctx, s, "default")
	require.NoError(t, err)

	v, err := store.Plaintext(ctx, "api_token")
	require.NoError(t, err)
	assert.Equal(t, "shh", v)
}

func TestLogger_WritesThroughLogEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	l, err := wiring.OpenLogger(ctx, s, "debug")
	require.NoError(t, err)
	assert.NoError(t, l.Log(ctx, "hello from a guest handler"))
}

func TestGeo_LookupParsesHostJSON(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	ctx := context.Background()

	geo, err := wiring.Lookup(ctx, s, net.ParseIP("127.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "", geo.CountryCode)
}

func TestCacheOverride_TagEncoding(t *testing.T) {
	t.Parallel()

	none, err := wiring.NewCacheOverride(wiring.CacheOverrideNone, nil, nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, hostabi.CacheOverrideTag(0), none.Tag())

	pass, err := wiring.NewCacheOverride(wiring.CacheOverridePassMode, nil, nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, hostabi.CacheOverridePass, pass.Tag())

	ttl := uint32(60)
	override, err := wiring.NewCacheOverride(wiring.CacheOverrideOverride, &ttl, nil, "page", true)
	require.NoError(t, err)
	assert.Equal(t, hostabi.CacheOverrideTTL|hostabi.CacheOverridePCI, override.Tag())

	_, err = wiring.NewCacheOverride(wiring.CacheOverrideNone, &ttl, nil, "", false)
	assert.Error(t, err)
}

func TestConsole_TraceGatedByDebugLogging(t *testing.T) {
	t.Parallel()
	c := wiring.NewConsole()
	ctx := context.Background()

	c.Log(ctx, "visible regardless")
	c.Trace(ctx, "hidden until enabled")

	c.SetDebugLogging(true)
	c.Trace(ctx, "now visible")
}

func TestCrypto_GetRandomValuesFillsBuffer(t *testing.T) {
	t.Parallel()
	require.NoError(t, wiring.ValidateRandomLength(32))
	assert.Error(t, wiring.ValidateRandomLength(100_000))

	buf := make([]byte, 32)
	require.NoError(t, wiring.GetRandomValues(buf))
	assert.NotEqual(t, make([]byte, 32), buf)
}

func TestTextCodec_RoundTrips(t *testing.T) {
	t.Parallel()
	enc := wiring.TextEncoder{}
	dec := wiring.TextDecoder{}

	encoded := enc.Encode("hello")
	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)

	dst := make([]byte, 3)
	read, written := enc.EncodeInto("hello", dst)
	assert.Equal(t, 3, written)
	assert.Equal(t, 3, read)
}

func TestURLSearchParams_AppendGetDelete(t *testing.T) {
	t.Parallel()
	p, err := wiring.NewURLSearchParams("a=1&b=2&a=3")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "3"}, p.GetAll("a"))

	p.Append("c", "4")
	v, ok := p.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "4", v)

	p.Delete("a")
	assert.Empty(t, p.GetAll("a"))

	u, err := wiring.ParseURL("https://example.com/path?x=1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.Host)
}
