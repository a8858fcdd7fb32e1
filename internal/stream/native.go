// Package stream implements the runtime's native stream substrate: the
// underlying-source/sink pair every guest-visible ReadableStream/
// WritableStream is backed by (spec §4.3), the spec-compliant TransformStream
// built on top of it (§4.5), and the pipe optimization that lets a native
// body flow into another native body without crossing into guest-visible
// byte arrays (§4.4).
//
// Full fidelity to every corner of the WHATWG streams standard is an
// explicit non-goal; this package implements exactly the algorithms the core
// depends on.
//
// Cyclic references (TransformStream ↔ its NativeSource/NativeSink,
// NativeSource ↔ its owner) are modeled as arena-relative IDs rather than
// owning pointers, the same way avidal-fastlike's handle tables index
// RequestHandle/BodyHandle by slice position (spec §9).
package stream

import "context"

// OwnerKind tags what a NativeSource's owner is, for the enum-dispatch the
// pull algorithm needs (spec §9 prefers a tag over an untyped function
// pointer field).
type OwnerKind uint8

const (
	OwnerRequestOrResponse OwnerKind = iota + 1
	OwnerTransform
)

// AlgoKind tags which start/pull/cancel/write/close/abort algorithm a
// NativeSource or NativeSink implements. Dispatch happens in NativeSource's
// pull/cancel and TransformStream's sink methods via a switch on this tag rather than a
// stored function pointer.
type AlgoKind uint8

const (
	PullBody AlgoKind = iota + 1
	PullTransformReadable
	CancelNoop
	CancelTransformReadable
)

// BodySource is the minimal body-handle surface stream needs from whatever
// owns a native body stream (an httpobj.RequestOrResponse in practice). It
// is an interface, not a concrete type, so this package never imports
// httpobj — the arena-of-IDs discipline applied at the package boundary.
type BodySource interface {
	// AppendTo splices this body's entire contents onto dest's body handle in
	// a single host call, then marks this body used. Used by the zero-copy
	// native-body-to-native-body pipe optimization.
	AppendTo(ctx context.Context, dest BodySource) error
	// ReadChunk reads one chunk from the underlying body handle, used by the
	// dispatch loop's process_next_body_read. A zero-length result is EOF.
	ReadChunk(ctx context.Context) ([]byte, error)
}

// SourceID, SinkID, and TransformID are arena-relative handles. Zero is the
// "none" sentinel in all three spaces.
type (
	SourceID    int
	SinkID      int
	TransformID int
)

// NativeSource is the engine-level underlying source for a ReadableStream.
type NativeSource struct {
	ID    SourceID
	arena *Arena

	OwnerKind OwnerKind
	// OwnerTransformID is valid when OwnerKind == OwnerTransform.
	OwnerTransformID TransformID
	// Body is valid when OwnerKind == OwnerRequestOrResponse.
	Body BodySource

	PullAlgo   AlgoKind
	CancelAlgo AlgoKind

	// PipedTo records that this source's stream is currently being piped
	// into that TransformStream's writable end (set by the pipeTo wrapper,
	// spec §4.3's piped_to_transform_stream field). Zero means not piped.
	PipedTo TransformID

	// OnPendingRead enqueues this source into the dispatch loop's
	// pending_body_reads queue. Required when PullAlgo == PullBody; supplied
	// by whoever constructs the source (internal/dispatch).
	OnPendingRead func(*NativeSource)

	Controller *ReadableController
}

// pull dispatches to this source's pull algorithm by tag.
func (s *NativeSource) pull(ctx context.Context) error {
	switch s.PullAlgo {
	case PullBody:
		return s.arena.pullBody(ctx, s)
	case PullTransformReadable:
		ts := s.arena.Transform(s.OwnerTransformID)
		if ts == nil {
			return nil
		}
		return ts.pullReadable(ctx)
	default:
		return nil
	}
}

// cancel dispatches to this source's cancel algorithm by tag. Per spec
// §4.4, body_cancel_algorithm is always a no-op success: the host continues
// draining regardless of guest cancellation.
func (s *NativeSource) cancel(ctx context.Context, reason error) error {
	switch s.CancelAlgo {
	case CancelTransformReadable:
		ts := s.arena.Transform(s.OwnerTransformID)
		if ts == nil {
			return nil
		}
		return ts.cancelReadable(ctx, reason)
	default:
		return nil
	}
}

// NativeSink is the symmetric underlying sink for a WritableStream. Its
// owner is always a TransformStream.
type NativeSink struct {
	ID        SinkID
	Transform TransformID
}
