package stream

import "context"

// Readable is the guest-visible ReadableStream, reduced to what the core
// touches: pulling the next chunk and cancelling.
type Readable struct {
	Source *NativeSource
	locked bool
}

// Read returns the next chunk, pulling first if the queue is currently
// empty (highwater mark 0: no eager pull, spec §4.4).
func (r *Readable) Read(ctx context.Context) (chunk []byte, done bool, err error) {
	ctrl := r.Source.Controller
	if ctrl.ShouldCallPull() {
		if err := r.Source.pull(ctx); err != nil {
			ctrl.Error(err)
		}
	}
	return ctrl.next(ctx)
}

// Cancel invokes the source's cancel algorithm. Per §4.4 the body cancel
// algorithm is always a no-op success.
func (r *Readable) Cancel(ctx context.Context, reason error) error {
	return r.Source.cancel(ctx, reason)
}

// Locked reports whether a reader currently holds this stream locked. The
// core only needs this at the pipeTo/respond_maybe_streaming boundary, so a
// single bool set by whoever acquires a reader is sufficient.
func (r *Readable) Locked() bool { return r.locked }

// Lock and Unlock model acquiring/releasing the default reader.
func (r *Readable) Lock() bool {
	if r.locked {
		return false
	}
	r.locked = true
	return true
}

func (r *Readable) Unlock() { r.locked = false }
