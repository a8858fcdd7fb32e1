package localhost

import (
	"sync"

	"github.com/eugener/saru/internal/saru"
)

// handleTable is a 1-based, slice-indexed table of host-side resources,
// generalizing avidal-fastlike's per-type RequestHandles/BodyHandles/etc.
// into one generic table: index 0 is never issued, matching
// saru.Handle(0xFFFFFFFF)'s "no handle" sentinel never colliding with a
// real (small, sequential) index here.
type handleTable[T any] struct {
	mu      sync.Mutex
	entries []T
}

// new appends v and returns its handle.
func (t *handleTable[T]) new(v T) saru.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, v)
	return saru.Handle(len(t.entries)) // 1-based
}

// get returns the entry for h, or the zero value and false if h is out of range.
func (t *handleTable[T]) get(h saru.Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(h) - 1
	var zero T
	if idx < 0 || idx >= len(t.entries) {
		return zero, false
	}
	return t.entries[idx], true
}

// set overwrites the entry for h. Reports false if h is out of range.
func (t *handleTable[T]) set(h saru.Handle, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(h) - 1
	if idx < 0 || idx >= len(t.entries) {
		return false
	}
	t.entries[idx] = v
	return true
}
