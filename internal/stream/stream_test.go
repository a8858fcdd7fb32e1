package stream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugener/saru/internal/stream"
)

// fakeBody is a minimal stream.BodySource double: ReadChunk drains a
// pre-loaded queue of chunks, AppendTo records what it was spliced onto.
type fakeBody struct {
	mu          sync.Mutex
	chunks      [][]byte
	appendedTo  stream.BodySource
	appendCalls int
}

func newFakeBody(chunks ...[]byte) *fakeBody { return &fakeBody{chunks: chunks} }

func (b *fakeBody) ReadChunk(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 {
		return nil, nil
	}
	c := b.chunks[0]
	b.chunks = b.chunks[1:]
	return c, nil
}

func (b *fakeBody) AppendTo(ctx context.Context, dest stream.BodySource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendedTo = dest
	b.appendCalls++
	return nil
}

func TestReadableController_ShouldCallPullOnlyWhileEmptyOpen(t *testing.T) {
	t.Parallel()
	c := stream.NewController()
	assert.True(t, c.ShouldCallPull())

	c.Enqueue([]byte("a"))
	assert.False(t, c.ShouldCallPull())

	c.Close()
	assert.False(t, c.ShouldCallPull(), "a closed controller never asks to pull again")
}

func TestReadableController_EnqueueThenCloseDrainsBeforeEOF(t *testing.T) {
	t.Parallel()
	c := stream.NewController()
	c.Enqueue([]byte("first"))
	c.Close()

	ctx := context.Background()
	r := &stream.Readable{Source: &stream.NativeSource{Controller: c}}

	chunk, done, err := r.Read(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "first", string(chunk))

	chunk, done, err = r.Read(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Nil(t, chunk)
}

func TestReadableController_EnqueueOntoClosedOrErroredIsNoop(t *testing.T) {
	t.Parallel()
	c := stream.NewController()
	c.Close()
	c.Enqueue([]byte("dropped"))
	assert.False(t, c.CanEnqueueOnto())

	errored := stream.NewController()
	errored.Error(errors.New("boom"))
	errored.Enqueue([]byte("dropped too"))
	assert.False(t, errored.CanEnqueueOnto())
}

func TestReadable_LockUnlock(t *testing.T) {
	t.Parallel()
	r := &stream.Readable{Source: &stream.NativeSource{Controller: stream.NewController()}}
	assert.False(t, r.Locked())
	assert.True(t, r.Lock())
	assert.True(t, r.Locked())
	assert.False(t, r.Lock(), "locking an already-locked reader must fail")
	r.Unlock()
	assert.False(t, r.Locked())
	assert.True(t, r.Lock())
}

// TestArena_PullBody_ZeroCopySpliceWhenPipedToOwnedTransform verifies
// testable-property 8: when a RequestOrResponse body source is piped into a
// TransformStream whose readable is itself the body of another
// RequestOrResponse, pulling the source splices bodies directly (AppendTo)
// instead of deferring to the dispatch loop's pending_body_reads queue.
func TestArena_PullBody_ZeroCopySpliceWhenPipedToOwnedTransform(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	ts := stream.NewTransformStream(arena, nil, nil)

	dest := newFakeBody()
	ts.SetOwner(dest)

	var pendingCalls int
	src := newFakeBody([]byte("whole body"))
	nsrc := arena.NewSource(src, func(*stream.NativeSource) { pendingCalls++ })
	nsrc.PipedTo = ts.ID

	r := &stream.Readable{Source: nsrc}
	chunk, done, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, done, "zero-copy splice closes the controller, yielding EOF immediately")
	assert.Nil(t, chunk)

	assert.Equal(t, 1, src.appendCalls)
	assert.Same(t, dest, src.appendedTo)
	assert.Zero(t, pendingCalls, "zero-copy path must not fall back to pending_body_reads")
}

// TestArena_PullBody_DefersToPendingReadsWhenNotOwned covers the same source
// as above but without a TransformStream owner set — the splice condition
// doesn't hold, so the pull algorithm must defer to OnPendingRead instead.
func TestArena_PullBody_DefersToPendingReadsWhenNotOwned(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()

	var got *stream.NativeSource
	src := newFakeBody([]byte("chunk"))
	nsrc := arena.NewSource(src, func(s *stream.NativeSource) { got = s })

	r := &stream.Readable{Source: nsrc}

	done := make(chan struct{})
	go func() {
		_, _, _ = r.Read(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Read returned without the dispatch loop ever enqueueing a chunk")
	case <-time.After(20 * time.Millisecond):
	}

	require.NotNil(t, got, "pull with no transform owner must enqueue into pending_body_reads")
	assert.Equal(t, nsrc, got)
	assert.Zero(t, src.appendCalls)

	nsrc.Controller.Enqueue([]byte("chunk"))
	<-done
}

// TestTransformStream_BackpressureOrdering verifies testable-property 7: a
// Write blocks while the readable side has unconsumed output, and is
// released in order by the readable's next pull.
func TestTransformStream_BackpressureOrdering(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	ts := stream.NewTransformStream(arena, nil, nil)
	ctx := context.Background()

	require.NoError(t, ts.Write(ctx, []byte("one")))

	secondWriteDone := make(chan error, 1)
	go func() {
		secondWriteDone <- ts.Write(ctx, []byte("two"))
	}()

	select {
	case <-secondWriteDone:
		t.Fatal("second write must block while backpressure is engaged")
	case <-time.After(20 * time.Millisecond):
	}

	chunk, done, err := ts.Readable.Read(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "one", string(chunk))

	select {
	case err := <-secondWriteDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reading the first chunk must release backpressure and unblock the second write")
	}

	chunk, done, err = ts.Readable.Read(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "two", string(chunk))
}

// TestTransformStream_TransformFuncRuns verifies a custom transform actually
// observes and can reshape each chunk.
func TestTransformStream_TransformFuncRuns(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	var seen [][]byte
	ts := stream.NewTransformStream(arena, func(ctx context.Context, chunk []byte, ctrl *stream.ReadableController) error {
		seen = append(seen, append([]byte(nil), chunk...))
		ctrl.Enqueue(append([]byte("["), append(chunk, ']')...))
		return nil
	}, nil)

	ctx := context.Background()
	require.NoError(t, ts.Write(ctx, []byte("x")))
	chunk, done, err := ts.Readable.Read(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "[x]", string(chunk))
	assert.Equal(t, [][]byte{[]byte("x")}, seen)
}

func TestTransformStream_CloseSinkRunsFlushThenClosesReadable(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	var flushed bool
	ts := stream.NewTransformStream(arena, nil, func(ctx context.Context, ctrl *stream.ReadableController) error {
		flushed = true
		ctrl.Enqueue([]byte("flushed chunk"))
		return nil
	})

	ctx := context.Background()
	require.NoError(t, ts.CloseSink(ctx))
	assert.True(t, flushed)

	chunk, done, err := ts.Readable.Read(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "flushed chunk", string(chunk))

	_, done, err = ts.Readable.Read(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestTransformStream_AbortErrorsReadableAndWritable(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	ts := stream.NewTransformStream(arena, nil, nil)
	ctx := context.Background()

	reason := errors.New("aborted")
	require.NoError(t, ts.Abort(ctx, reason))

	_, _, err := ts.Readable.Read(ctx)
	assert.ErrorIs(t, err, reason)

	err = ts.Write(ctx, []byte("too late"))
	assert.ErrorIs(t, err, reason)
}

// TestPipeTo_DrainsSourceIntoTransformAndClosesSink drives PipeTo end to end
// over a NativeSource fed manually (standing in for process_next_body_read),
// verifying the "echo" shape of spec §8's pipe scenario: every chunk written
// upstream arrives, transformed, on the destination readable, and the sink
// closes once the source is exhausted.
func TestPipeTo_DrainsSourceIntoTransformAndClosesSink(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	srcCtrl := stream.NewController()
	src := &stream.Readable{Source: &stream.NativeSource{Controller: srcCtrl}}

	ts := stream.NewTransformStream(arena, func(ctx context.Context, chunk []byte, ctrl *stream.ReadableController) error {
		ctrl.Enqueue(chunk)
		return nil
	}, nil)

	srcCtrl.Enqueue([]byte("hello "))
	srcCtrl.Enqueue([]byte("world"))
	srcCtrl.Close()

	pipeErr := make(chan error, 1)
	go func() { pipeErr <- stream.PipeTo(context.Background(), src, ts) }()

	var got []byte
	ctx := context.Background()
	for {
		chunk, done, err := ts.Readable.Read(ctx)
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, "hello world", string(got))
	require.NoError(t, <-pipeErr)
	assert.True(t, src.Locked(), "pipeTo never releases the reader lock it acquires (spec: locked for pipe's lifetime)")
}

func TestPipeTo_RejectsAlreadyLockedSource(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	src := &stream.Readable{Source: &stream.NativeSource{Controller: stream.NewController()}}
	require.True(t, src.Lock())

	ts := stream.NewTransformStream(arena, nil, nil)
	err := stream.PipeTo(context.Background(), src, ts)
	assert.Error(t, err)
}

func TestPipeThrough_ReturnsDestinationReadableImmediately(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	srcCtrl := stream.NewController()
	src := &stream.Readable{Source: &stream.NativeSource{Controller: srcCtrl}}
	ts := stream.NewTransformStream(arena, nil, nil)

	out, err := stream.PipeThrough(context.Background(), src, ts)
	require.NoError(t, err)
	assert.Same(t, ts.Readable, out)

	srcCtrl.Enqueue([]byte("piped"))
	srcCtrl.Close()

	chunk, done, err := out.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "piped", string(chunk))
}

func TestPipeThrough_RejectsLockedSource(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	src := &stream.Readable{Source: &stream.NativeSource{Controller: stream.NewController()}}
	require.True(t, src.Lock())

	ts := stream.NewTransformStream(arena, nil, nil)
	_, err := stream.PipeThrough(context.Background(), src, ts)
	assert.Error(t, err)
}

func TestPipeTo_AbortsDestinationOnSourceReadError(t *testing.T) {
	t.Parallel()
	arena := stream.NewArena()
	srcCtrl := stream.NewController()
	src := &stream.Readable{Source: &stream.NativeSource{Controller: srcCtrl}}
	ts := stream.NewTransformStream(arena, nil, nil)

	readErr := errors.New("read failed")
	srcCtrl.Error(readErr)

	err := stream.PipeTo(context.Background(), src, ts)
	assert.ErrorIs(t, err, readErr)

	_, _, err = ts.Readable.Read(context.Background())
	assert.ErrorIs(t, err, readErr)
}
