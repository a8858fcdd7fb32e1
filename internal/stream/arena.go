package stream

import "context"

// Arena owns every NativeSource, NativeSink, and TransformStream created
// during a request's lifetime, indexed by ID exactly the way avidal-
// fastlike's RequestHandles/BodyHandles slices are indexed by handle value.
// A fresh Arena is created per FetchEvent dispatch and discarded with it.
type Arena struct {
	sources    []*NativeSource
	sinks      []*NativeSink
	transforms []*TransformStream
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// NewSource allocates a NativeSource owned by a RequestOrResponse's body.
func (a *Arena) NewSource(body BodySource, onPendingRead func(*NativeSource)) *NativeSource {
	s := &NativeSource{
		arena:         a,
		OwnerKind:     OwnerRequestOrResponse,
		Body:          body,
		PullAlgo:      PullBody,
		CancelAlgo:    CancelNoop,
		OnPendingRead: onPendingRead,
		Controller:    NewController(),
	}
	a.sources = append(a.sources, s)
	s.ID = SourceID(len(a.sources))
	return s
}

// newTransformSource allocates the NativeSource backing a TransformStream's
// readable end.
func (a *Arena) newTransformSource(owner TransformID) *NativeSource {
	s := &NativeSource{
		arena:            a,
		OwnerKind:        OwnerTransform,
		OwnerTransformID: owner,
		PullAlgo:         PullTransformReadable,
		CancelAlgo:       CancelTransformReadable,
		Controller:       NewController(),
	}
	a.sources = append(a.sources, s)
	s.ID = SourceID(len(a.sources))
	return s
}

// newTransformSink allocates the NativeSink backing a TransformStream's
// writable end.
func (a *Arena) newTransformSink(owner TransformID) *NativeSink {
	sk := &NativeSink{Transform: owner}
	a.sinks = append(a.sinks, sk)
	sk.ID = SinkID(len(a.sinks))
	return sk
}

// Transform resolves a TransformID to its TransformStream, or nil for 0 / an
// out-of-range ID.
func (a *Arena) Transform(id TransformID) *TransformStream {
	if id <= 0 || int(id) > len(a.transforms) {
		return nil
	}
	return a.transforms[id-1]
}

// registerTransform assigns the next TransformID and stores ts.
func (a *Arena) registerTransform(ts *TransformStream) TransformID {
	a.transforms = append(a.transforms, ts)
	return TransformID(len(a.transforms))
}

// pullBody implements the RequestOrResponse body_pull_algorithm (spec §4.4):
// if this source is piped into a TransformStream whose readable is itself
// used as another RequestOrResponse's body, splice the bodies together on
// the host side and close — the zero-copy optimization. Otherwise defer to
// the dispatch loop's pending_body_reads queue.
func (a *Arena) pullBody(ctx context.Context, src *NativeSource) error {
	if src.PipedTo != 0 {
		if ts := a.Transform(src.PipedTo); ts != nil {
			if dest := ts.Owner(); dest != nil {
				if err := src.Body.AppendTo(ctx, dest); err != nil {
					return err
				}
				src.Controller.Close()
				return nil
			}
		}
	}
	if src.OnPendingRead != nil {
		src.OnPendingRead(src)
	}
	return nil
}
