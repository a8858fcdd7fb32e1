package saru

import (
	"context"
	"fmt"
)

// bodyReadChunk is the chunk size read_all grows the buffer by (spec §4.2).
const bodyReadChunk = 1024

// bodyHost is the body_* host-call family a BodyHandle calls through. It has
// the method set of hostabi.Body, declared here because hostabi imports this
// package for Handle.
type bodyHost interface {
	BodyNew(ctx context.Context) (Handle, error)
	BodyRead(ctx context.Context, h Handle, maxLen int) ([]byte, error)
	BodyWrite(ctx context.Context, h Handle, p []byte) (int, error)
	BodyAppend(ctx context.Context, dest, src Handle) error
	BodyClose(ctx context.Context, h Handle) error
}

// BodyHandle is a bytes-in, bytes-out channel identified by a handle. The
// one-way used invariant the spec places on RequestOrResponse bodies is
// enforced one layer up, by httpobj.Base.bodyUsed, since that's the layer
// that actually knows about reads, streams, and handle moves; BodyHandle
// itself is just the host-facing read/write/append primitive.
type BodyHandle struct {
	h    Handle
	host bodyHost

	// autoDecompressGzip and autoDecompressBrotli mirror the original
	// runtime's body auto-decompression bitfield (original_source content
	// negotiation). They are only stored and reported by the getters below;
	// ReadAll and ReadChunk return the host's bytes without decompressing.
	autoDecompressGzip   bool
	autoDecompressBrotli bool
}

// NewBody allocates a fresh body handle via the host.
func NewBody(ctx context.Context, host bodyHost) (*BodyHandle, error) {
	h, err := host.BodyNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("body new: %w", err)
	}
	return &BodyHandle{h: h, host: host}, nil
}

// WrapBody wraps an existing handle (e.g. one returned from a host send)
// without allocating a new one.
func WrapBody(h Handle, host bodyHost) *BodyHandle {
	return &BodyHandle{h: h, host: host}
}

func (b *BodyHandle) Handle() Handle { return b.h }

// ReadAll reads the body in bodyReadChunk-sized pages, growing the result by
// chunk size, terminating on a zero-length read or (when readUntilZero is
// false) on a short read.
func (b *BodyHandle) ReadAll(ctx context.Context, readUntilZero bool) ([]byte, error) {
	var out []byte
	for {
		chunk, err := b.host.BodyRead(ctx, b.h, bodyReadChunk)
		if err != nil {
			return nil, fmt.Errorf("body read: %w", err)
		}
		out = append(out, chunk...)
		if len(chunk) == 0 {
			return out, nil
		}
		if !readUntilZero && len(chunk) < bodyReadChunk {
			return out, nil
		}
	}
}

// ReadChunk reads a single chunk of at most bodyReadChunk bytes, used by the
// fetch dispatch loop's process_next_body_read (spec §4.8). A zero-length
// result means EOF.
func (b *BodyHandle) ReadChunk(ctx context.Context) ([]byte, error) {
	chunk, err := b.host.BodyRead(ctx, b.h, bodyReadChunk)
	if err != nil {
		return nil, fmt.Errorf("body read: %w", err)
	}
	return chunk, nil
}

// Write appends bytes to the body via the host.
func (b *BodyHandle) Write(ctx context.Context, p []byte) error {
	_, err := b.host.BodyWrite(ctx, b.h, p)
	if err != nil {
		return fmt.Errorf("body write: %w", err)
	}
	return nil
}

// Append splices another body's contents onto this one via a single host
// call, the mechanism behind the native-body-to-native-body pipe
// optimization (spec §4.4).
func (b *BodyHandle) Append(ctx context.Context, src *BodyHandle) error {
	if err := b.host.BodyAppend(ctx, b.h, src.h); err != nil {
		return fmt.Errorf("body append: %w", err)
	}
	return nil
}

// SetAutoDecompressGzip records the gzip auto-decompression flag. Reads of
// this body are not affected by it.
func (b *BodyHandle) SetAutoDecompressGzip(v bool) { b.autoDecompressGzip = v }

// SetAutoDecompressBrotli records the brotli auto-decompression flag. Reads
// of this body are not affected by it.
func (b *BodyHandle) SetAutoDecompressBrotli(v bool) { b.autoDecompressBrotli = v }

// AutoDecompressGzip reports the current gzip auto-decompression setting.
func (b *BodyHandle) AutoDecompressGzip() bool { return b.autoDecompressGzip }

// AutoDecompressBrotli reports the current brotli auto-decompression setting.
func (b *BodyHandle) AutoDecompressBrotli() bool { return b.autoDecompressBrotli }

// Close releases the body handle. Advisory only, per the handle model.
func (b *BodyHandle) Close(ctx context.Context) error {
	if err := b.host.BodyClose(ctx, b.h); err != nil {
		return fmt.Errorf("body close: %w", err)
	}
	return nil
}
