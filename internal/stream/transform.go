package stream

import (
	"context"
	"errors"
	"sync"
)

// TransformFunc is the user transform algorithm. Implementations call
// ctrl.Enqueue to produce output chunks. The default (when the transformer
// supplies none) is enqueue(chunk) unchanged.
type TransformFunc func(ctx context.Context, chunk []byte, ctrl *ReadableController) error

// FlushFunc is the user flush algorithm, run once on writable close before
// the readable is closed.
type FlushFunc func(ctx context.Context, ctrl *ReadableController) error

// TransformStream is a paired readable+writable with a backpressure gate and
// controller (spec §4.5). Chunks written to the writable side run through
// transformFn and land in the readable side's controller.
type TransformStream struct {
	ID TransformID

	Readable *Readable
	Sink     *NativeSink

	arena *Arena

	transformFn TransformFunc
	flushFn     FlushFunc

	mu           sync.Mutex
	backpressure bool
	signal       chan struct{}

	writableErrored bool
	writableClosed  bool
	writableErr     error

	owner BodySource
}

// NewTransformStream constructs a TransformStream registered in arena. A nil
// transformFn/flushFn falls back to the default algorithms (§4.5).
func NewTransformStream(arena *Arena, transformFn TransformFunc, flushFn FlushFunc) *TransformStream {
	ts := &TransformStream{
		arena:       arena,
		transformFn: transformFn,
		flushFn:     flushFn,
		signal:      make(chan struct{}),
	}
	ts.ID = arena.registerTransform(ts)
	src := arena.newTransformSource(ts.ID)
	ts.Readable = &Readable{Source: src}
	ts.Sink = arena.newTransformSink(ts.ID)
	return ts
}

// SetOwner marks this TransformStream's readable as used as the body of
// dest, the hook the zero-copy pipe optimization checks (spec §4.4 step 1).
func (ts *TransformStream) SetOwner(dest BodySource) { ts.mu.Lock(); ts.owner = dest; ts.mu.Unlock() }

// Owner returns the RequestOrResponse (if any) whose body this stream's
// readable backs.
func (ts *TransformStream) Owner() BodySource {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.owner
}

// Enqueue implements the controller.enqueue(chunk) algorithm: error if the
// readable cannot be enqueued onto, else enqueue and update backpressure.
func (ts *TransformStream) Enqueue(chunk []byte) error {
	ctrl := ts.Readable.Source.Controller
	if !ctrl.CanEnqueueOnto() {
		return errors.New("transform stream: cannot enqueue onto closed or errored readable")
	}
	ctrl.Enqueue(chunk)
	if !ctrl.ShouldCallPull() {
		ts.setBackpressure(true)
	}
	return nil
}

// setBackpressure requires current != b; it fulfils the existing
// backpressure-change signal and installs a fresh one before flipping the
// flag (spec §4.5 SetBackpressure).
func (ts *TransformStream) setBackpressure(b bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.backpressure == b {
		return
	}
	close(ts.signal)
	ts.signal = make(chan struct{})
	ts.backpressure = b
}

func (ts *TransformStream) backpressureSignal() (bool, chan struct{}) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.backpressure, ts.signal
}

// Write implements the sink's write(chunk) algorithm: propagate a writable
// error, wait out backpressure, then perform the transform.
func (ts *TransformStream) Write(ctx context.Context, chunk []byte) error {
	ts.mu.Lock()
	if ts.writableErrored {
		err := ts.writableErr
		ts.mu.Unlock()
		return err
	}
	ts.mu.Unlock()

	if bp, sig := ts.backpressureSignal(); bp {
		select {
		case <-sig:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ts.performTransform(ctx, chunk)
}

func (ts *TransformStream) performTransform(ctx context.Context, chunk []byte) error {
	var err error
	if ts.transformFn != nil {
		err = ts.transformFn(ctx, chunk, ts.Readable.Source.Controller)
	} else {
		err = ts.Enqueue(chunk)
	}
	if err != nil {
		ts.errorStream(err)
		return err
	}
	return nil
}

// Abort implements the sink's abort(reason) algorithm.
func (ts *TransformStream) Abort(_ context.Context, reason error) error {
	ts.errorStream(reason)
	return nil
}

// CloseSink implements the sink's close() algorithm: run flush, clear the
// algorithms, then close the readable unless it errored.
func (ts *TransformStream) CloseSink(ctx context.Context) error {
	var err error
	if ts.flushFn != nil {
		err = ts.flushFn(ctx, ts.Readable.Source.Controller)
	}
	ts.mu.Lock()
	ts.transformFn = nil
	ts.flushFn = nil
	ts.writableClosed = true
	ts.mu.Unlock()

	if err != nil {
		ts.errorStream(err)
		return err
	}
	if ts.Readable.Source.Controller.CanEnqueueOnto() {
		ts.Readable.Source.Controller.Close()
	}
	return nil
}

// pullReadable implements the source's pull algorithm: flip backpressure
// off, unblocking any writer waiting on the signal.
func (ts *TransformStream) pullReadable(context.Context) error {
	ts.setBackpressure(false)
	return nil
}

// cancelReadable implements the source's cancel(reason) algorithm.
func (ts *TransformStream) cancelReadable(_ context.Context, reason error) error {
	ts.errorWritableAndUnblockWrite(reason)
	return nil
}

// errorStream errors the readable, then errors and unblocks the writable.
func (ts *TransformStream) errorStream(e error) {
	ts.Readable.Source.Controller.Error(e)
	ts.errorWritableAndUnblockWrite(e)
}

// errorWritableAndUnblockWrite clears the transform/flush algorithms, puts
// the writable in the errored state if it isn't already closed, and releases
// backpressure so no writer is left blocked forever.
func (ts *TransformStream) errorWritableAndUnblockWrite(e error) {
	ts.mu.Lock()
	ts.transformFn = nil
	ts.flushFn = nil
	if !ts.writableClosed {
		ts.writableErrored = true
		ts.writableErr = e
	}
	bp := ts.backpressure
	ts.mu.Unlock()
	if bp {
		ts.setBackpressure(false)
	}
}
