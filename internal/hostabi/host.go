// Package hostabi defines the fallible, handle-taking host interface the
// runtime core is built against (spec §6). Production builds bind this to
// the sandboxed engine's imported host functions; internal/hostabi/localhost
// provides a reference implementation for tests and the dev harness.
package hostabi

import (
	"context"

	"github.com/eugener/saru/internal/saru"
)

// CacheOverrideTag is the bit-encoded cache-override wire value (spec §6):
// bit 0 Pass, bit 1 TTL present, bit 2 SWR present, bit 3 PCI.
type CacheOverrideTag uint8

const (
	CacheOverridePass CacheOverrideTag = 1 << 0
	CacheOverrideTTL  CacheOverrideTag = 1 << 1
	CacheOverrideSWR  CacheOverrideTag = 1 << 2
	CacheOverridePCI  CacheOverrideTag = 1 << 3
)

// PendingSelectResult is what req_pending_req_select returns on a ready
// handle: the index of the satisfied entry plus the resulting handles.
type PendingSelectResult struct {
	Index    int
	Response saru.Handle
	Body     saru.Handle
}

// AsyncSelectResult is what async_select returns: the index of the first
// ready handle, or ok=false if the timeout elapsed first.
type AsyncSelectResult struct {
	Index int
	OK    bool
}

// Host is the full handle-taking surface the core depends on. Every method
// returns (value, error); a non-nil error is always a *saruerr.HostCallError
// unless otherwise noted. Implementations must be safe to call from a single
// goroutine only — the core never calls concurrently on the same Host.
type Host interface {
	Request
	Response
	Body
	Dict
	Log
	Geo
	Async
}

// Request is the req_* host-call family.
type Request interface {
	ReqNew(ctx context.Context) (saru.Handle, error)
	ReqMethodGet(ctx context.Context, h saru.Handle) (string, error)
	ReqMethodSet(ctx context.Context, h saru.Handle, method string) error
	ReqURIGet(ctx context.Context, h saru.Handle) (string, error)
	ReqURISet(ctx context.Context, h saru.Handle, uri string) error
	ReqVersionGet(ctx context.Context, h saru.Handle) (int, error)
	ReqHeaderNamesGet(ctx context.Context, h saru.Handle) ([]string, error)
	ReqHeaderValuesGet(ctx context.Context, h saru.Handle, name string) ([]string, error)
	ReqHeaderInsert(ctx context.Context, h saru.Handle, name, value string) error
	ReqHeaderAppend(ctx context.Context, h saru.Handle, name, value string) error
	ReqHeaderRemove(ctx context.Context, h saru.Handle, name string) error
	ReqSendAsync(ctx context.Context, h saru.Handle, body saru.Handle, backend string) (saru.Handle, error)
	ReqPendingReqSelect(ctx context.Context, handles []saru.Handle) (PendingSelectResult, error)
	ReqBodyDownstreamGet(ctx context.Context) (saru.Handle, saru.Handle, error)
	ReqDownstreamClientIPAddr(ctx context.Context) ([]byte, error)
	ReqCacheOverrideV2Set(ctx context.Context, h saru.Handle, tag CacheOverrideTag, ttlSeconds, swrSeconds uint32, surrogateKey string) error
}

// Response is the resp_* host-call family.
type Response interface {
	RespNew(ctx context.Context) (saru.Handle, error)
	RespStatusGet(ctx context.Context, h saru.Handle) (int, error)
	RespStatusSet(ctx context.Context, h saru.Handle, status int) error
	RespVersionGet(ctx context.Context, h saru.Handle) (int, error)
	RespHeaderNamesGet(ctx context.Context, h saru.Handle) ([]string, error)
	RespHeaderValuesGet(ctx context.Context, h saru.Handle, name string) ([]string, error)
	RespHeaderInsert(ctx context.Context, h saru.Handle, name, value string) error
	RespHeaderAppend(ctx context.Context, h saru.Handle, name, value string) error
	RespHeaderRemove(ctx context.Context, h saru.Handle, name string) error
	RespSendDownstream(ctx context.Context, h saru.Handle, body saru.Handle, streaming bool) error
}

// Body is the body_* host-call family.
type Body interface {
	BodyNew(ctx context.Context) (saru.Handle, error)
	BodyRead(ctx context.Context, h saru.Handle, maxLen int) ([]byte, error)
	BodyWrite(ctx context.Context, h saru.Handle, p []byte) (int, error)
	BodyAppend(ctx context.Context, dest, src saru.Handle) error
	BodyClose(ctx context.Context, h saru.Handle) error
}

// Dict is the dictionary_* host-call family.
type Dict interface {
	DictionaryOpen(ctx context.Context, name string) (saru.Handle, error)
	DictionaryGet(ctx context.Context, h saru.Handle, key string) (string, error)
}

// Log is the log_* host-call family.
type Log interface {
	LogEndpointGet(ctx context.Context, name string) (saru.Handle, error)
	LogWrite(ctx context.Context, h saru.Handle, msg string) (int, error)
}

// Geo is the geo_* host-call family. The result is the raw JSON body
// returned by the host; internal/wiring parses it.
type Geo interface {
	GeoLookup(ctx context.Context, addr []byte) (string, error)
}

// Async is the async_* host-call family.
type Async interface {
	AsyncIsReady(ctx context.Context, h saru.Handle) (bool, error)
	AsyncSelect(ctx context.Context, handles []saru.Handle, timeoutMS int) (AsyncSelectResult, error)
}
