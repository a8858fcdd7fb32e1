// Package httpobj implements the common RequestOrResponse data shared by
// Request and Response (spec §3/§4.4): url, method/status, headers, body
// handle, body stream, and the one-way body-used transition.
package httpobj

import (
	"context"
	"fmt"

	"github.com/eugener/saru/internal/headers"
	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
	"github.com/eugener/saru/internal/stream"
)

// Base holds the fields common to Request and Response.
type Base struct {
	Handle saru.Handle

	Body       *saru.BodyHandle
	HasBody    bool
	bodyUsed   bool
	BodyStream *stream.Readable

	Headers *headers.Headers

	URL string

	// Version is the HTTP version reported by the host (supplemented from
	// original_source, which tracks it alongside method/status).
	Version int

	arena *stream.Arena
}

// BodyUsed reports whether the body has been consumed. The transition is
// one-way: once true, it never reverts.
func (b *Base) BodyUsed() bool { return b.bodyUsed }

// AppendTo implements stream.BodySource: splice this body's entire contents
// onto dest's body handle in one host call, then mark this one used. This
// is the zero-copy native-body-to-native-body pipe optimization (spec §4.4).
func (b *Base) AppendTo(ctx context.Context, dest stream.BodySource) error {
	target, ok := dest.(*Base)
	if !ok {
		return fmt.Errorf("httpobj: append target is not a RequestOrResponse body")
	}
	if err := target.Body.Append(ctx, b.Body); err != nil {
		return err
	}
	b.bodyUsed = true
	if b.BodyStream != nil {
		b.BodyStream.Lock()
	}
	return nil
}

// ReadChunk implements stream.BodySource: read one chunk from the body
// handle for the dispatch loop's process_next_body_read.
func (b *Base) ReadChunk(ctx context.Context) ([]byte, error) {
	return b.Body.ReadChunk(ctx)
}

// CreateBodyStream creates a ReadableStream (highwater mark 0, no eager
// pull) wrapping a NativeSource owned by this object, exposed via the body
// getter. onPendingRead is the dispatch loop's pending_body_reads enqueue
// hook.
func (b *Base) CreateBodyStream(arena *stream.Arena, onPendingRead func(*stream.NativeSource)) *stream.Readable {
	b.arena = arena
	src := arena.NewSource(b, onPendingRead)
	b.BodyStream = &stream.Readable{Source: src}
	return b.BodyStream
}

// SetBody implements set_body(value): nil clears has_body; a *stream.Readable
// is stored as the body stream with no owner set; a *stream.TransformStream
// stores its readable and makes this object that stream's owner; []byte and
// string are written directly to the body handle.
func (b *Base) SetBody(ctx context.Context, value any) error {
	switch v := value.(type) {
	case nil:
		b.HasBody = false
		return nil
	case *stream.Readable:
		b.BodyStream = v
		b.HasBody = true
		return nil
	case *stream.TransformStream:
		v.SetOwner(b)
		b.BodyStream = v.Readable
		b.HasBody = true
		return nil
	case []byte:
		if err := b.Body.Write(ctx, v); err != nil {
			return err
		}
		b.HasBody = true
		return nil
	case string:
		if err := b.Body.Write(ctx, []byte(v)); err != nil {
			return err
		}
		b.HasBody = true
		return nil
	default:
		return fmt.Errorf("httpobj: unsupported body value type %T", value)
	}
}

// BodyAll synchronously reads the entire body and marks it used, the shared
// engine behind arrayBuffer()/text()/json(). Rejects if the body was already
// consumed.
func (b *Base) BodyAll(ctx context.Context) ([]byte, error) {
	if b.bodyUsed {
		return nil, saruerr.ErrBodyUsed
	}
	data, err := b.Body.ReadAll(ctx, true)
	if err != nil {
		return nil, err
	}
	b.bodyUsed = true
	if b.BodyStream != nil {
		b.BodyStream.Lock()
	}
	return data, nil
}

// MoveBodyHandle copies from's body handle value onto to, marks from used,
// and locks its stream. Used when a guest Response wraps a stream fed
// directly from another native body (spec §4.4 move_body_handle).
func MoveBodyHandle(from, to *Base) {
	to.Body = from.Body
	from.bodyUsed = true
	if from.BodyStream != nil {
		from.BodyStream.Lock()
	}
}
