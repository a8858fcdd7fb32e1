package fetchevent

import (
	"context"
	"log/slog"

	"github.com/eugener/saru/internal/httpobj"
	"github.com/eugener/saru/internal/saruerr"
)

// RespondMaybeStreaming implements spec §4.7's respond_maybe_streaming: send
// resp downstream, streaming its body only when necessary, and drive this
// event's state to ResponseStreaming or ResponseDone accordingly.
//
//  1. Fail if the body stream is locked or disturbed.
//  2. If the body stream is a native-body stream for another
//     RequestOrResponse, move its handle into resp and send non-streaming.
//  3. Else if the reader cannot be locked, send non-streaming. A stream that
//     is already closed is not detected here: it takes the streaming path
//     and completes on its first read.
//  4. Otherwise start a streaming downstream send and drain the reader in
//     the background, closing the body and transitioning to ResponseDone on
//     completion or error.
func (e *FetchEvent) RespondMaybeStreaming(ctx context.Context, resp *httpobj.Response, nativeBodyOwner *httpobj.Base) error {
	if resp.BodyStream != nil && resp.BodyStream.Locked() {
		return saruerr.ErrBodyLocked
	}

	if nativeBodyOwner != nil {
		httpobj.MoveBodyHandle(nativeBodyOwner, &resp.Base)
		if err := resp.SendDownstream(ctx, false); err != nil {
			return err
		}
		e.Done()
		return nil
	}

	if resp.BodyStream == nil {
		if err := resp.SendDownstream(ctx, false); err != nil {
			return err
		}
		e.Done()
		return nil
	}

	if !resp.BodyStream.Lock() {
		// Locked by another reader since the check above: non-streaming.
		if err := resp.SendDownstream(ctx, false); err != nil {
			return err
		}
		e.Done()
		return nil
	}

	if err := resp.SendDownstream(ctx, true); err != nil {
		resp.BodyStream.Unlock()
		return err
	}
	e.EnterStreaming()

	go e.drainStreamingBody(ctx, resp)
	return nil
}

func (e *FetchEvent) drainStreamingBody(ctx context.Context, resp *httpobj.Response) {
	defer resp.BodyStream.Unlock()
	for {
		chunk, done, err := resp.BodyStream.Read(ctx)
		if err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "streaming response body read failed",
				slog.String("error", err.Error()))
			_ = resp.Body.Close(ctx)
			e.Done()
			return
		}
		if done {
			_ = resp.Body.Close(ctx)
			e.Done()
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if err := resp.Body.Write(ctx, chunk); err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "streaming response body write failed",
				slog.String("error", err.Error()))
			_ = resp.Body.Close(ctx)
			e.Done()
			return
		}
	}
}
