package localhost

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
)

func newTestHost(t *testing.T, backendURL string) *Host {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Backends: []config.BackendEntry{
			{Name: "origin", BaseURL: backendURL, MaxRPS: 0, TimeoutMs: 2000},
		},
		DefaultBackend: "origin",
		Dictionaries: []config.DictionaryEntry{
			{Name: "pricing", Entries: map[string]string{"tier": "gold"}},
		},
	}
	h, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func newTestSession(t *testing.T, host *Host) *Session {
	t.Helper()
	downstream := httptest.NewRequest(http.MethodGet, "/hello", strings.NewReader("body"))
	downstream.RemoteAddr = "203.0.113.5:1234"
	s, err := NewSession(host, downstream)
	require.NoError(t, err)
	return s
}

func TestSession_DownstreamRequestWrapping(t *testing.T) {
	t.Parallel()
	host := newTestHost(t, "")
	s := newTestSession(t, host)
	ctx := context.Background()

	reqH, bodyH, err := s.ReqBodyDownstreamGet(ctx)
	require.NoError(t, err)

	method, err := s.ReqMethodGet(ctx, reqH)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, method)

	chunk, err := s.BodyRead(ctx, bodyH, 1024)
	require.NoError(t, err)
	assert.Equal(t, "body", string(chunk))

	ip, err := s.ReqDownstreamClientIPAddr(ctx)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", net.IP(ip).String())
}

func TestSession_RequestHeaderRoundTrip(t *testing.T) {
	t.Parallel()
	host := newTestHost(t, "")
	s := newTestSession(t, host)
	ctx := context.Background()

	h, err := s.ReqNew(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ReqHeaderInsert(ctx, h, "X-Test", "one"))
	require.NoError(t, s.ReqHeaderAppend(ctx, h, "X-Test", "two"))

	values, err := s.ReqHeaderValuesGet(ctx, h, "X-Test")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, values)

	require.NoError(t, s.ReqHeaderRemove(ctx, h, "X-Test"))
	_, err = s.ReqHeaderValuesGet(ctx, h, "X-Test")
	assert.True(t, saruerr.IsNone(err))
}

func TestSession_ResponseLifecycle(t *testing.T) {
	t.Parallel()
	host := newTestHost(t, "")
	s := newTestSession(t, host)
	ctx := context.Background()

	h, err := s.RespNew(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RespStatusSet(ctx, h, http.StatusTeapot))

	status, err := s.RespStatusGet(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
}

func TestSession_BodyAppendSplicesAndConsumesSource(t *testing.T) {
	t.Parallel()
	host := newTestHost(t, "")
	s := newTestSession(t, host)
	ctx := context.Background()

	dest, _ := s.BodyNew(ctx)
	src, _ := s.BodyNew(ctx)
	_, _ = s.BodyWrite(ctx, dest, []byte("hello "))
	_, _ = s.BodyWrite(ctx, src, []byte("world"))

	require.NoError(t, s.BodyAppend(ctx, dest, src))

	got, err := s.BodyRead(ctx, dest, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	// src is consumed by append.
	remainder, err := s.BodyRead(ctx, src, 1024)
	require.NoError(t, err)
	assert.Empty(t, remainder)
}

func TestSession_DictionaryGet(t *testing.T) {
	t.Parallel()
	host := newTestHost(t, "")
	s := newTestSession(t, host)
	ctx := context.Background()

	h, err := s.DictionaryOpen(ctx, "pricing")
	require.NoError(t, err)

	v, err := s.DictionaryGet(ctx, h, "tier")
	require.NoError(t, err)
	assert.Equal(t, "gold", v)

	_, err = s.DictionaryGet(ctx, h, "missing")
	assert.True(t, saruerr.IsNone(err))
}

func TestSession_FetchRoundTripAgainstRealBackend(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/widgets", r.URL.Path)
		w.Header().Set("X-From", "origin")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("widget list"))
	}))
	t.Cleanup(upstream.Close)

	host := newTestHost(t, upstream.URL)
	s := newTestSession(t, host)
	ctx := context.Background()

	reqH, _ := s.ReqNew(ctx)
	require.NoError(t, s.ReqMethodSet(ctx, reqH, http.MethodGet))
	require.NoError(t, s.ReqURISet(ctx, reqH, "/widgets"))
	bodyH, _ := s.BodyNew(ctx)

	pendH, err := s.ReqSendAsync(ctx, reqH, bodyH, "origin")
	require.NoError(t, err)

	result, err := s.ReqPendingReqSelect(ctx, []saru.Handle{pendH})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Index)

	status, err := s.RespStatusGet(ctx, result.Response)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	values, err := s.RespHeaderValuesGet(ctx, result.Response, "X-From")
	require.NoError(t, err)
	assert.Equal(t, []string{"origin"}, values)

	body, err := s.BodyRead(ctx, result.Body, 1024)
	require.NoError(t, err)
	assert.Equal(t, "widget list", string(body))
}

func TestSession_CacheOverrideServesFromCacheOnSecondCall(t *testing.T) {
	t.Parallel()
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("cached body"))
	}))
	t.Cleanup(upstream.Close)

	host := newTestHost(t, upstream.URL)

	doFetch := func() {
		s := newTestSession(t, host)
		ctx := context.Background()
		reqH, _ := s.ReqNew(ctx)
		require.NoError(t, s.ReqMethodSet(ctx, reqH, http.MethodGet))
		require.NoError(t, s.ReqURISet(ctx, reqH, "/cached"))
		require.NoError(t, s.ReqCacheOverrideV2Set(ctx, reqH, hostabi.CacheOverrideTTL, 60, 0, "page"))
		bodyH, _ := s.BodyNew(ctx)

		pendH, err := s.ReqSendAsync(ctx, reqH, bodyH, "origin")
		require.NoError(t, err)
		_, err = s.ReqPendingReqSelect(ctx, []saru.Handle{pendH})
		require.NoError(t, err)
	}

	doFetch()
	doFetch()
	assert.Equal(t, 1, hits, "second fetch should be served from cache")
}
