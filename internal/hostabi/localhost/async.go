package localhost

import (
	"context"
	"reflect"
	"time"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// AsyncIsReady reports whether h's pending request has a result available.
// internal/dispatch never calls this directly (it polls pending requests
// through ReqPendingReqSelect instead); Async exists for guest code that
// opens its own async handles outside the dispatch loop's fast path.
func (s *Session) AsyncIsReady(ctx context.Context, h saru.Handle) (bool, error) {
	pe, ok := s.pending.get(h)
	if !ok {
		return false, errInvalidHandle("async_is_ready")
	}
	select {
	case <-pe.done:
		return true, nil
	default:
		return false, nil
	}
}

// AsyncSelect blocks up to timeoutMS for the first ready handle in handles.
func (s *Session) AsyncSelect(ctx context.Context, handles []saru.Handle, timeoutMS int) (hostabi.AsyncSelectResult, error) {
	entries := make([]*pendingEntry, len(handles))
	for i, h := range handles {
		pe, ok := s.pending.get(h)
		if !ok {
			return hostabi.AsyncSelectResult{}, errInvalidHandle("async_select")
		}
		entries[i] = pe
	}

	selectCtx := ctx
	if timeoutMS > 0 {
		var cancel context.CancelFunc
		selectCtx, cancel = context.WithTimeout(ctx, msDuration(timeoutMS))
		defer cancel()
	}

	cases := make([]reflect.SelectCase, len(entries)+1)
	for i, pe := range entries {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(pe.done)}
	}
	cases[len(entries)] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(selectCtx.Done())}

	chosen, _, _ := reflect.Select(cases)
	if chosen == len(entries) {
		return hostabi.AsyncSelectResult{OK: false}, nil
	}
	return hostabi.AsyncSelectResult{Index: chosen, OK: true}, nil
}
