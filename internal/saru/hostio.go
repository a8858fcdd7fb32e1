package saru

import (
	"fmt"
	"sync/atomic"
)

// ScratchBuffer models the single reusable scratch buffer every host call
// borrows for the duration of one call (spec §4.1). Production bindings size
// it to HostcallBufferLen; the reference host never needs raw bytes, and no
// host call in this module acquires it. Acquire panics on a re-entrant
// acquisition, so misuse is a programmer error caught immediately rather
// than a silent data race on shared memory.
//
// HostcallBufferLen is the scratch buffer size: the max of the host's
// per-field limits (header value, method, URI, dictionary entry).
const HostcallBufferLen = 64 * 1024

type ScratchBuffer struct {
	held atomic.Bool
	buf  [HostcallBufferLen]byte
}

// NewScratchBuffer returns a zeroed, unheld scratch buffer.
func NewScratchBuffer() *ScratchBuffer { return &ScratchBuffer{} }

// Acquire borrows the buffer exclusively for the duration of one host call.
// It panics on re-entrant acquisition: callers must not acquire twice on the
// same stack, exactly as the spec requires ("fails fatally").
func (s *ScratchBuffer) Acquire() []byte {
	if !s.held.CompareAndSwap(false, true) {
		panic("saru: scratch buffer acquired re-entrantly")
	}
	return s.buf[:]
}

// Release returns the buffer for the next call.
func (s *ScratchBuffer) Release() {
	s.held.Store(false)
}

// CursorPage is one page of a multi-value cursor read: the entries decoded
// from this call, and the cursor to pass on the next call. next < 0 means
// there is no more data.
type CursorPage[T any] struct {
	Entries []T
	Next    int32
}

// Enumerate drives a cursor loop exactly like spec §4.1's multi-value reads
// (header names, dictionary entries): call fetch(cursor) repeatedly, starting
// at 0, collecting entries until it reports a negative next-cursor.
func Enumerate[T any](fetch func(cursor int32) (CursorPage[T], error)) ([]T, error) {
	var all []T
	cursor := int32(0)
	for {
		page, err := fetch(cursor)
		if err != nil {
			return nil, fmt.Errorf("enumerate: %w", err)
		}
		all = append(all, page.Entries...)
		if page.Next < 0 {
			return all, nil
		}
		cursor = page.Next
	}
}
