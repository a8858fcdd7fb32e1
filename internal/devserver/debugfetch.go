package devserver

import (
	"io"
	"log/slog"
	"net/http"
)

// handleDebugFetch drives the incoming request through the runtime core as
// a synthetic downstream request, the way a real guest engine would deliver
// one to the FetchEvent. Useful for exercising the dispatch loop without a
// sandboxed engine attached.
//
// A guest listener error never reaches here as an error: HandleFetch's
// respondWith-rejection path sends a synthetic 500 downstream itself and
// still returns a normal response. An error from HandleFetch means the pump
// itself couldn't run at all (host construction failed, the downstream
// request couldn't be wrapped, network IO failed) — there is no response to
// relay, so this is the dev harness's own 502, not the guest's.
func (s *server) handleDebugFetch(w http.ResponseWriter, r *http.Request) {
	runDebugFetch(s.deps.Runtime, w, r)
}

// handleDebugFetchTransform runs the same synthetic-downstream-request path
// against the transform-pipe guest program instead of the default reverse
// proxy, so the TransformStream/PipeThrough/PipeTo machinery has a real call
// site reachable over HTTP.
func (s *server) handleDebugFetchTransform(w http.ResponseWriter, r *http.Request) {
	runDebugFetch(s.deps.TransformRuntime, w, r)
}

func runDebugFetch(runtime FetchRunner, w http.ResponseWriter, r *http.Request) {
	resp, err := runtime.HandleFetch(r.Context(), r)
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "debug fetch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}
	defer resp.Body.Close()

	dst := w.Header()
	for name, values := range resp.Header {
		dst[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
