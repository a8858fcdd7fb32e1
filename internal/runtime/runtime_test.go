package runtime_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/hostabi/localhost"
	"github.com/eugener/saru/internal/runtime"
)

func newTestRuntime(t *testing.T, backendURL string) *runtime.Runtime {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Backends: []config.BackendEntry{
			{Name: "origin", BaseURL: backendURL, MaxRPS: 0, TimeoutMs: 2000},
		},
		DefaultBackend: "origin",
	}
	host, err := localhost.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	factory := func(ctx context.Context, r *http.Request) (runtime.SessionHost, error) {
		return localhost.NewSession(host, r)
	}
	return runtime.New(factory, runtime.ReverseProxyHandler("origin"))
}

func TestRuntime_HandleFetch_ReverseProxiesToDefaultBackend(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		w.Header().Set("X-From", "origin")
		w.Write([]byte("hi"))
	}))
	t.Cleanup(upstream.Close)

	rt := newTestRuntime(t, upstream.URL)

	downstream := httptest.NewRequest(http.MethodGet, "/hello", nil)
	resp, err := rt.HandleFetch(context.Background(), downstream)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "origin", resp.Header.Get("X-From"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(body))
}

func TestRuntime_HandleFetch_SendsSyntheticErrorResponseOnBackendFailure(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, "http://127.0.0.1:1")

	downstream := httptest.NewRequest(http.MethodGet, "/unreachable", nil)
	resp, err := rt.HandleFetch(context.Background(), downstream)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}
