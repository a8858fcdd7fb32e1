package stream

import (
	"context"
	"errors"
)

// PipeTo drains src into dest's writable side. If src's underlying source is
// a native body (OwnerRequestOrResponse) and dest is the writable end of a
// TransformStream, it tags src with PipedTo first — the hook the body pull
// algorithm checks to take the zero-copy append path instead of copying
// bytes through this loop (spec §4.3's piped_to_transform_stream, §4.4).
func PipeTo(ctx context.Context, src *Readable, dest *TransformStream) error {
	if !src.Lock() {
		return errors.New("stream: pipeTo source already locked")
	}
	defer src.Unlock()

	if src.Source.OwnerKind == OwnerRequestOrResponse {
		src.Source.PipedTo = dest.ID
	}

	for {
		chunk, done, err := src.Read(ctx)
		if err != nil {
			_ = dest.Abort(ctx, err)
			return err
		}
		if done {
			return dest.CloseSink(ctx)
		}
		if len(chunk) == 0 {
			continue
		}
		if err := dest.Write(ctx, chunk); err != nil {
			return err
		}
	}
}

// PipeThrough validates both ends are unlocked, pipes readable into ts's
// writable (in the background, mirroring the spec's "mark the returned
// promise as handled"), and returns ts's readable for further chaining.
func PipeThrough(ctx context.Context, src *Readable, ts *TransformStream) (*Readable, error) {
	if src.Locked() {
		return nil, errors.New("stream: pipeThrough source already locked")
	}
	go func() {
		_ = PipeTo(ctx, src, ts)
	}()
	return ts.Readable, nil
}
