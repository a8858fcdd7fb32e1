package localhost

import (
	"context"
	"sync"

	"github.com/eugener/saru/internal/saru"
)

// bodyEntry is the reference host's Body handle payload: a growable byte
// buffer with a read cursor. The reference host never streams lazily; it
// buffers whole bodies, which is adequate for the dev harness and tests but
// means BodyRead/BodyWrite never block.
type bodyEntry struct {
	mu     sync.Mutex
	data   []byte
	off    int
	closed bool
}

func (s *Session) body(fn string, h saru.Handle) (*bodyEntry, error) {
	e, ok := s.bodies.get(h)
	if !ok {
		return nil, errInvalidHandle(fn)
	}
	return e, nil
}

func (s *Session) BodyNew(ctx context.Context) (saru.Handle, error) {
	return s.bodies.new(&bodyEntry{}), nil
}

// BodyRead returns up to maxLen unread bytes, advancing the cursor. A
// zero-length, nil-error result means end of body, matching the host's
// BufferLength/EOF convention for streamed reads.
func (s *Session) BodyRead(ctx context.Context, h saru.Handle, maxLen int) ([]byte, error) {
	e, err := s.body("body_read", h)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := len(e.data) - e.off
	if remaining <= 0 {
		return nil, nil
	}
	n := maxLen
	if n > remaining {
		n = remaining
	}
	chunk := append([]byte(nil), e.data[e.off:e.off+n]...)
	e.off += n
	return chunk, nil
}

// BodyWrite appends p to the body, matching the guest-writable direction of
// a body handle (e.g. a Request being built for fetch()).
func (s *Session) BodyWrite(ctx context.Context, h saru.Handle, p []byte) (int, error) {
	e, err := s.body("body_write", h)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = append(e.data, p...)
	return len(p), nil
}

// BodyAppend splices src's unread remainder onto the end of dest, consuming
// src, mirroring fastly's Body.append (used for multipart concatenation and
// the runtime's native-body-to-native-body pipe optimization).
func (s *Session) BodyAppend(ctx context.Context, dest, src saru.Handle) error {
	destE, err := s.body("body_append", dest)
	if err != nil {
		return err
	}
	srcE, err := s.body("body_append", src)
	if err != nil {
		return err
	}

	srcE.mu.Lock()
	unread := append([]byte(nil), srcE.data[srcE.off:]...)
	srcE.off = len(srcE.data)
	srcE.mu.Unlock()

	destE.mu.Lock()
	destE.data = append(destE.data, unread...)
	destE.mu.Unlock()
	return nil
}

func (s *Session) BodyClose(ctx context.Context, h saru.Handle) error {
	e, err := s.body("body_close", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
