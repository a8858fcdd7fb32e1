// Package runtime implements the top-level pump (spec §4.8): invoke the
// guest's fetch listener synchronously, then alternate process_network_io
// ticks with waiting for FetchEvent.is_active() to go false and the dispatch
// loop's pending queues to drain, exactly mirroring the original runtime's
// single-threaded microtask/IO interleaving without an actual microtask
// queue (Go's goroutines and channels stand in for it).
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eugener/saru/internal/dispatch"
	"github.com/eugener/saru/internal/fetchevent"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/httpobj"
	"github.com/eugener/saru/internal/stream"
)

// idleBackoff bounds how long the top-level pump sleeps between
// process_network_io ticks once both dispatch queues are empty but the
// FetchEvent is still active (a streaming response body draining on its own
// goroutine, or an outstanding waitUntil promise). Without it the pump would
// spin the CPU at 100% waiting for that goroutine to call event.Done().
const idleBackoff = time.Millisecond

// Handler is the guest's fetch listener: given the event and the dispatch
// loop it may call Fetch on, it must eventually call event.RespondWith and
// event.RespondMaybeStreaming (directly or via helpers) before returning.
// Returning a non-nil error is equivalent to the listener throwing or its
// respondWith promise rejecting.
type Handler func(ctx context.Context, event *fetchevent.FetchEvent, loop *dispatch.Loop) error

// SessionHost is the per-request hostabi.Host the dev harness's reference
// host hands the runtime: everything Host needs, plus a way to collect the
// final downstream response once the guest calls resp_send_downstream.
type SessionHost interface {
	hostabi.Host
	Result() (*http.Response, error)
}

// HostFactory builds a fresh, request-scoped SessionHost for one incoming
// HTTP request, wrapping it as the downstream Request the FetchEvent sees.
type HostFactory func(ctx context.Context, r *http.Request) (SessionHost, error)

// Runtime drives one Handler against fresh per-request Host/FetchEvent/Loop
// state, implementing internal/devserver.FetchRunner.
type Runtime struct {
	newHost HostFactory
	handler Handler
}

// New returns a Runtime that builds a Host via newHost and invokes handler
// for every fetch.
func New(newHost HostFactory, handler Handler) *Runtime {
	return &Runtime{newHost: newHost, handler: handler}
}

// HandleFetch runs one full FetchEvent lifecycle for r and returns the
// guest's final downstream response.
func (rt *Runtime) HandleFetch(ctx context.Context, r *http.Request) (*http.Response, error) {
	host, err := rt.newHost(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("runtime: build host: %w", err)
	}

	arena := stream.NewArena()
	loop := dispatch.New(host, arena)

	reqHandle, bodyHandle, err := host.ReqBodyDownstreamGet(ctx)
	if err != nil {
		return nil, fmt.Errorf("runtime: downstream request: %w", err)
	}
	downstream, err := httpobj.WrapDownstreamRequest(ctx, host, host, reqHandle, bodyHandle)
	if err != nil {
		return nil, fmt.Errorf("runtime: wrap downstream request: %w", err)
	}

	event := fetchevent.New(downstream)

	handlerErr := rt.handler(ctx, event, loop)
	event.EndDispatch()
	if handlerErr != nil {
		// The listener threw or its respondWith promise rejected: respondWith's
		// rejection path always ends in a synthetic 500 sent downstream through
		// the normal resp_send_downstream channel (spec §4.7/§7), not a raw Go
		// error back to our caller.
		if err := respondWithSyntheticError(ctx, host, event, handlerErr); err != nil {
			return nil, fmt.Errorf("runtime: synthesize error response: %w", err)
		}
	}

	for event.IsActive() || !loop.Idle() {
		if !loop.Idle() {
			if err := loop.ProcessNetworkIO(ctx); err != nil {
				return nil, fmt.Errorf("runtime: process network io: %w", err)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(idleBackoff):
		}
	}

	return host.Result()
}

// respondWithSyntheticError implements the tail of spec §4.7's respondWith
// rejection path: log the reason, transition to RespondedWithError, and send
// a synthetic 500 downstream through the same resp_send_downstream call the
// success path uses, so host.Result() always returns a proper response.
func respondWithSyntheticError(ctx context.Context, host SessionHost, event *fetchevent.FetchEvent, reason error) error {
	event.RespondWithError(ctx, reason)

	resp, err := httpobj.NewResponse(ctx, host, host)
	if err != nil {
		return fmt.Errorf("build synthetic error response: %w", err)
	}
	if err := resp.SetStatus(ctx, http.StatusInternalServerError); err != nil {
		return fmt.Errorf("set synthetic error status: %w", err)
	}
	if err := resp.Body.Write(ctx, []byte("internal error")); err != nil {
		return fmt.Errorf("write synthetic error body: %w", err)
	}
	if err := resp.SendDownstream(ctx, false); err != nil {
		return fmt.Errorf("send synthetic error response downstream: %w", err)
	}
	return nil
}
