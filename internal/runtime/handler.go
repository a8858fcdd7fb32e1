package runtime

import (
	"bytes"
	"context"
	"fmt"

	"github.com/eugener/saru/internal/dispatch"
	"github.com/eugener/saru/internal/fetchevent"
	"github.com/eugener/saru/internal/httpobj"
	"github.com/eugener/saru/internal/stream"
)

// ReverseProxyHandler returns the dev harness's default fetch listener: it
// forwards the downstream request to defaultBackend unchanged and streams
// whatever comes back, the minimal guest program that exercises every stage
// of the pump (fetch, pending-request select, body streaming) without an
// actual embedded script engine.
func ReverseProxyHandler(defaultBackend string) Handler {
	return func(ctx context.Context, event *fetchevent.FetchEvent, loop *dispatch.Loop) error {
		if err := event.RespondWith(); err != nil {
			return err
		}

		future, err := loop.Fetch(ctx, event.Request, event.Request.Backend, defaultBackend)
		if err != nil {
			return err
		}

		resp, err := future.Await(ctx)
		if err != nil {
			return err
		}

		return event.RespondMaybeStreaming(ctx, resp, nil)
	}
}

// TransformPipeHandler returns a fetch listener that pipes the downstream
// request body through an uppercasing TransformStream into a freshly
// constructed Response (spec §8's "Transform pipe" scenario): it builds the
// request's native body stream, constructs a TransformStream over it with
// stream.PipeThrough/PipeTo, and responds with the transformed readable.
// Because the response body is set from the TransformStream's Readable
// rather than the TransformStream itself, the transform's owner is never
// set, so the zero-copy native-body splice in Arena.pullBody never
// short-circuits it: every chunk genuinely flows through uppercaseTransform
// and the backpressure gate between the piped write and the streaming read.
func TransformPipeHandler() Handler {
	return func(ctx context.Context, event *fetchevent.FetchEvent, loop *dispatch.Loop) error {
		if err := event.RespondWith(); err != nil {
			return err
		}

		arena := loop.Arena()
		reqStream := event.Request.CreateBodyStream(arena, loop.OnPendingRead)

		ts := stream.NewTransformStream(arena, uppercaseTransform, nil)
		if _, err := stream.PipeThrough(ctx, reqStream, ts); err != nil {
			return fmt.Errorf("transform pipe handler: pipe through: %w", err)
		}

		host := loop.Host()
		resp, err := httpobj.NewResponse(ctx, host, host)
		if err != nil {
			return fmt.Errorf("transform pipe handler: new response: %w", err)
		}
		if err := resp.SetBody(ctx, ts.Readable); err != nil {
			return fmt.Errorf("transform pipe handler: set body: %w", err)
		}

		return event.RespondMaybeStreaming(ctx, resp, nil)
	}
}

// uppercaseTransform is the default transform this handler demonstrates:
// upper-case every chunk unchanged in length, the simplest transform that
// still proves chunks are actually visiting transformFn rather than being
// spliced past it.
func uppercaseTransform(_ context.Context, chunk []byte, ctrl *stream.ReadableController) error {
	ctrl.Enqueue(bytes.ToUpper(chunk))
	return nil
}
