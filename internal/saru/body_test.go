package saru_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugener/saru/internal/config"
	"github.com/eugener/saru/internal/hostabi/localhost"
	"github.com/eugener/saru/internal/saru"
)

func newTestHost(t *testing.T) *localhost.Session {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{DSN: ":memory:"}}
	host, err := localhost.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	downstream := httptest.NewRequest(http.MethodGet, "/", nil)
	s, err := localhost.NewSession(host, downstream)
	require.NoError(t, err)
	return s
}

func TestNewBody_AllocatesViaHost(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	b, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	assert.NotZero(t, b.Handle())
}

func TestBodyHandle_WriteThenReadAll(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	b, err := saru.NewBody(ctx, host)
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, []byte("hello ")))
	require.NoError(t, b.Write(ctx, []byte("world")))

	data, err := b.ReadAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestBodyHandle_ReadChunk_ZeroLengthMeansEOF(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	b, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []byte("x")))

	chunk, err := b.ReadChunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", string(chunk))

	chunk, err = b.ReadChunk(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunk, "a drained body reads back zero-length, meaning EOF")
}

func TestBodyHandle_AppendSplicesSourceOntoDest(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	src, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	require.NoError(t, src.Write(ctx, []byte("from source")))

	dest, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	require.NoError(t, dest.Write(ctx, []byte("dest: ")))

	require.NoError(t, dest.Append(ctx, src))

	data, err := dest.ReadAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "dest: from source", string(data))
}

func TestBodyHandle_WrapBody_ReusesExistingHandleWithoutAllocating(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	orig, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	require.NoError(t, orig.Write(ctx, []byte("payload")))

	wrapped := saru.WrapBody(orig.Handle(), host)
	data, err := wrapped.ReadAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestBodyHandle_AutoDecompressFlagsDefaultFalseAndAreIndependentlySettable(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	b, err := saru.NewBody(ctx, host)
	require.NoError(t, err)

	assert.False(t, b.AutoDecompressGzip())
	assert.False(t, b.AutoDecompressBrotli())

	b.SetAutoDecompressGzip(true)
	assert.True(t, b.AutoDecompressGzip())
	assert.False(t, b.AutoDecompressBrotli())

	b.SetAutoDecompressBrotli(true)
	assert.True(t, b.AutoDecompressBrotli())
}

func TestBodyHandle_Close(t *testing.T) {
	t.Parallel()
	host := newTestHost(t)
	ctx := context.Background()

	b, err := saru.NewBody(ctx, host)
	require.NoError(t, err)
	assert.NoError(t, b.Close(ctx))
}
