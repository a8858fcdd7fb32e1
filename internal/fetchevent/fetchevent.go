// Package fetchevent implements the FetchEvent state machine (spec §4.7):
// the dispatching → unhandled → waitToRespond → (responseStreaming |
// responseDone | respondedWithError) progression the runtime uses to decide
// when a response may be sent and when the worker may exit.
package fetchevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eugener/saru/internal/httpobj"
)

// State is the FetchEvent's monotonically increasing state.
type State int

const (
	Unhandled State = iota
	WaitToRespond
	ResponseStreaming
	ResponseDone
	RespondedWithError
)

func (s State) String() string {
	switch s {
	case Unhandled:
		return "unhandled"
	case WaitToRespond:
		return "wait_to_respond"
	case ResponseStreaming:
		return "response_streaming"
	case ResponseDone:
		return "response_done"
	case RespondedWithError:
		return "responded_with_error"
	default:
		return "unknown"
	}
}

// ErrAlreadyResponded is returned by RespondWith when called a second time
// or outside synchronous dispatch.
var ErrAlreadyResponded = errors.New("fetchevent: respondWith called outside dispatch or after first response")

// Client is the lazily constructed downstream client info.
type Client struct {
	Address string
	Geo     any // populated on demand by internal/wiring's geo lookup
}

// FetchEvent is the per-invocation state machine guarding respondWith and
// exposing is_active() to the top-level pump.
type FetchEvent struct {
	mu sync.Mutex

	Request *httpobj.Request
	client  *Client

	dispatching         bool
	state               State
	pendingPromiseCount uint32
}

// New constructs a FetchEvent for req, starting in Unhandled with
// dispatching = true (the listener is about to be invoked synchronously).
func New(req *httpobj.Request) *FetchEvent {
	return &FetchEvent{Request: req, state: Unhandled, dispatching: true}
}

// State returns the current state.
func (e *FetchEvent) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// EndDispatch marks the synchronous listener invocation as finished. Called
// once control returns to the top-level pump.
func (e *FetchEvent) EndDispatch() {
	e.mu.Lock()
	e.dispatching = false
	e.mu.Unlock()
}

// Client lazily constructs and caches the client info.
func (e *FetchEvent) Client(build func() *Client) *Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		e.client = build()
	}
	return e.client
}

// RespondWith transitions Unhandled → WaitToRespond. It may only be called
// during synchronous dispatch; a violation or a second call throws without
// changing state (spec "Violations throw without changing state").
func (e *FetchEvent) RespondWith() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dispatching || e.state != Unhandled {
		return ErrAlreadyResponded
	}
	e.state = WaitToRespond
	return nil
}

// EnterStreaming transitions WaitToRespond → ResponseStreaming.
func (e *FetchEvent) EnterStreaming() {
	e.transition(ResponseStreaming)
}

// Done transitions the current state to ResponseDone (from WaitToRespond,
// when the response has no body stream, or from ResponseStreaming, on body
// stream end).
func (e *FetchEvent) Done() {
	e.transition(ResponseDone)
}

// RespondWithError transitions to RespondedWithError. Called when the
// respondWith promise rejects or fulfils with a non-Response.
func (e *FetchEvent) RespondWithError(ctx context.Context, reason error) {
	slog.LogAttrs(ctx, slog.LevelError, "respondWith rejected, sending synthetic error response",
		slog.String("error", fmt.Sprint(reason)),
	)
	e.transition(RespondedWithError)
}

func (e *FetchEvent) transition(next State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if next > e.state {
		e.state = next
	}
}

// WaitUntil increments the pending-promise count; the caller is responsible
// for calling the returned decrement func when p settles, either way.
func (e *FetchEvent) WaitUntil() (decrement func()) {
	e.mu.Lock()
	e.pendingPromiseCount++
	e.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.pendingPromiseCount--
			e.mu.Unlock()
		})
	}
}

// IsActive reports whether the runtime must keep pumping for this event:
// still dispatching, still streaming a response, or still waiting on
// waitUntil promises.
func (e *FetchEvent) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatching || e.state == ResponseStreaming || e.pendingPromiseCount > 0
}
