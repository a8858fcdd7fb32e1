package stream

import (
	"context"
	"sync"
)

// ReadableController is the controller side of a NativeSource: it holds the
// queued chunks and lets producers enqueue/close/error independently of
// whoever is currently reading.
type ReadableController struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	closed  bool
	errored error
}

// NewController returns an empty, open controller.
func NewController() *ReadableController {
	c := &ReadableController{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ShouldCallPull reports whether the stream's highwater mark (always 0, per
// spec §4.4's "no eager pull") permits another pull: true only while the
// queue is empty and the stream is neither closed nor errored.
func (c *ReadableController) ShouldCallPull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) == 0 && !c.closed && c.errored == nil
}

// Enqueue appends a chunk for the next reader. Enqueuing onto a closed or
// errored controller is a no-op; callers are expected to have checked first.
func (c *ReadableController) Enqueue(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.errored != nil {
		return
	}
	c.queue = append(c.queue, chunk)
	c.cond.Broadcast()
}

// Close marks the stream closed; pending reads drain the queue first, then
// observe closed.
func (c *ReadableController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// Error puts the stream in the errored state, discarding any queued chunks
// per the streams standard (an errored stream never yields further data).
func (c *ReadableController) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errored = err
	c.queue = nil
	c.cond.Broadcast()
}

// CanEnqueueOnto reports whether the controller can currently be enqueued
// onto (used by TransformStream's Enqueue algorithm, which must throw if
// the readable cannot be enqueued onto).
func (c *ReadableController) CanEnqueueOnto() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.errored == nil
}

// next blocks until a chunk is available, the stream closes, or ctx is
// cancelled. done=true with a nil chunk means EOF.
func (c *ReadableController) next(ctx context.Context) (chunk []byte, done bool, err error) {
	c.mu.Lock()
	for len(c.queue) == 0 && !c.closed && c.errored == nil {
		if ctx.Err() != nil {
			c.mu.Unlock()
			return nil, false, ctx.Err()
		}
		// sync.Cond has no context-aware wait; a watcher goroutine broadcasts
		// on cancellation so Wait() always returns promptly.
		stop := watchCtx(ctx, c.cond)
		c.cond.Wait()
		stop()
	}
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	if len(c.queue) > 0 {
		chunk = c.queue[0]
		c.queue = c.queue[1:]
		return chunk, false, nil
	}
	if c.errored != nil {
		return nil, false, c.errored
	}
	return nil, true, nil
}

// watchCtx spawns a goroutine that broadcasts on cond when ctx is done, and
// returns a stop func to clean it up once the waiter is unblocked for any
// other reason.
func watchCtx(ctx context.Context, cond *sync.Cond) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.Broadcast()
		case <-done:
		}
	}()
	return func() { close(done) }
}
