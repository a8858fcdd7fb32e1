// Package dispatch implements the asynchronous dispatch loop (spec §4.8):
// fetch() registers pending outbound requests; process_network_io selects
// ready pending requests, resolves/rejects response promises, and drains
// pending body reads into stream controllers.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/httpobj"
	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
	"github.com/eugener/saru/internal/stream"
)

const bodyReadChunk = 1024

// Loop owns the two pending queues the spec's Data Model holds at runtime
// scope: pending_requests and pending_body_reads. Exactly one goroutine
// drives process_network_io at a time; fetch() may be called concurrently
// with it (e.g. from a listener running on its own goroutine), so the
// queues are mutex-guarded.
type Loop struct {
	host  hostabi.Host
	arena *stream.Arena

	mu               sync.Mutex
	pendingRequests  []*httpobj.Request
	pendingBodyReads []*stream.NativeSource
}

// New returns a Loop driving host, backed by arena for native stream state.
func New(host hostabi.Host, arena *stream.Arena) *Loop {
	return &Loop{host: host, arena: arena}
}

// Arena exposes the loop's stream arena so callers can construct native
// body streams wired to this loop's OnPendingRead hook.
func (l *Loop) Arena() *stream.Arena { return l.arena }

// Host exposes the underlying hostabi.Host so a Handler can build fresh
// Request/Response objects (e.g. a synthetic Response fed by a transform
// pipeline) without the loop needing a constructor for every httpobj shape.
func (l *Loop) Host() hostabi.Host { return l.host }

// OnPendingRead is the callback injected into every NativeSource created for
// a request/response body: it enqueues the source into pending_body_reads.
func (l *Loop) OnPendingRead(src *stream.NativeSource) {
	l.mu.Lock()
	l.pendingBodyReads = append(l.pendingBodyReads, src)
	l.mu.Unlock()
}

// Fetch implements fetch(input, init): resolves the backend, sends the
// request asynchronously, and registers it in pending_requests with a fresh
// response future.
func (l *Loop) Fetch(ctx context.Context, req *httpobj.Request, explicitBackend, defaultBackend string) (*httpobj.ResponseFuture, error) {
	backend := explicitBackend
	if backend == "" {
		backend = defaultBackend
	}
	if backend == "" {
		return nil, saruerr.ErrNoBackend
	}
	req.Backend = backend

	pending, err := l.host.ReqSendAsync(ctx, req.Handle, req.Body.Handle(), backend)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	req.PendingHandle = pending
	req.Response = httpobj.NewResponseFuture()

	l.mu.Lock()
	l.pendingRequests = append(l.pendingRequests, req)
	l.mu.Unlock()

	return req.Response, nil
}

// ProcessPendingRequests implements process_pending_requests: block
// cooperatively (via the host's any-of select) until one pending request is
// ready, remove it from the queue, and resolve or reject its future.
func (l *Loop) ProcessPendingRequests(ctx context.Context) error {
	l.mu.Lock()
	if len(l.pendingRequests) == 0 {
		l.mu.Unlock()
		return nil
	}
	handles := make([]saru.Handle, len(l.pendingRequests))
	for i, r := range l.pendingRequests {
		handles[i] = r.PendingHandle
	}
	l.mu.Unlock()

	result, err := l.host.ReqPendingReqSelect(ctx, handles)
	if err != nil {
		return fmt.Errorf("process pending requests: %w", err)
	}

	l.mu.Lock()
	if result.Index < 0 || result.Index >= len(l.pendingRequests) {
		l.mu.Unlock()
		return nil
	}
	req := l.pendingRequests[result.Index]
	l.pendingRequests = append(l.pendingRequests[:result.Index], l.pendingRequests[result.Index+1:]...)
	l.mu.Unlock()

	if !result.Response.Valid() {
		req.Response.Reject(saruerr.ErrNetwork)
		return nil
	}
	resp, err := httpobj.WrapUpstreamResponse(ctx, l.host, l.host, result.Response, result.Body)
	if err != nil {
		req.Response.Reject(err)
		return nil
	}
	resp.URL = req.URL
	req.Response.Resolve(resp)
	return nil
}

// ProcessNextBodyRead implements process_next_body_read: pop one deferred
// source, read a single chunk from its owner's body handle, and enqueue,
// close, or error the controller accordingly.
func (l *Loop) ProcessNextBodyRead(ctx context.Context) error {
	l.mu.Lock()
	if len(l.pendingBodyReads) == 0 {
		l.mu.Unlock()
		return nil
	}
	src := l.pendingBodyReads[0]
	l.pendingBodyReads = l.pendingBodyReads[1:]
	l.mu.Unlock()

	chunk, err := src.Body.ReadChunk(ctx)
	if err != nil {
		src.Controller.Error(err)
		return nil
	}
	if len(chunk) == 0 {
		src.Controller.Close()
		return nil
	}
	src.Controller.Enqueue(chunk)
	return nil
}

// ProcessNetworkIO implements process_network_io: poll pending requests (at
// most one completion per turn), then drain one body read.
func (l *Loop) ProcessNetworkIO(ctx context.Context) error {
	if err := l.ProcessPendingRequests(ctx); err != nil {
		return err
	}
	return l.ProcessNextBodyRead(ctx)
}

// Idle reports whether both pending queues are empty, one of the two
// conditions (alongside FetchEvent.IsActive() being false) the top-level
// pump checks before exiting.
func (l *Loop) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pendingRequests) == 0 && len(l.pendingBodyReads) == 0
}
