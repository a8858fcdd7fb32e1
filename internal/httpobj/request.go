package httpobj

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/eugener/saru/internal/headers"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

var normalizedMethods = map[string]string{
	"DELETE": "DELETE", "GET": "GET", "HEAD": "HEAD",
	"OPTIONS": "OPTIONS", "POST": "POST", "PUT": "PUT",
}

// NormalizeMethod canonicalizes m to uppercase iff it case-insensitively
// matches one of the six normalized methods; otherwise it returns m
// unchanged (spec §6 "Method normalization").
func NormalizeMethod(m string) string {
	if canon, ok := normalizedMethods[strings.ToUpper(m)]; ok {
		return canon
	}
	return m
}

// Request adds method, optional backend, and the single in-flight pending
// request slot to Base.
type Request struct {
	Base

	host hostabi.Request

	method     string
	methodRead bool

	Backend       string
	PendingHandle saru.Handle
	Response      *ResponseFuture
	IsDownstream  bool

	// OriginalHeaderNames preserves the exact casing the host reported for
	// the downstream request's header names (supplemented feature:
	// downstream_original_header_names in original_source).
	OriginalHeaderNames []string
}

// NewRequest allocates a fresh request handle via the host.
func NewRequest(ctx context.Context, host hostabi.Request, body hostabi.Body) (*Request, error) {
	h, err := host.ReqNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("request new: %w", err)
	}
	bh, err := saru.NewBody(ctx, body)
	if err != nil {
		return nil, err
	}
	r := &Request{Base: Base{Handle: h, Body: bh}, host: host}
	r.Headers = headers.New()
	return r, nil
}

// WrapDownstreamRequest wraps the handles returned by req_body_downstream_get
// as the event's downstream Request, with lazy proxy-to-request headers.
func WrapDownstreamRequest(ctx context.Context, host hostabi.Request, bodyHost hostabi.Body, reqHandle, bodyHandle saru.Handle) (*Request, error) {
	r := &Request{
		Base:         Base{Handle: reqHandle, Body: saru.WrapBody(bodyHandle, bodyHost), HasBody: true},
		host:         host,
		IsDownstream: true,
	}
	hdrs, err := headers.NewProxy(ctx, headers.ProxyToRequest, requestHeaderProxy{host: host, h: reqHandle}, true)
	if err != nil {
		return nil, err
	}
	r.Headers = hdrs
	names, err := host.ReqHeaderNamesGet(ctx, reqHandle)
	if err != nil {
		return nil, fmt.Errorf("request: original header names: %w", err)
	}
	r.OriginalHeaderNames = names
	return r, nil
}

// Method returns the request method, fetching it from the host once and
// caching the result (spec §3: "method (lazy; retrieved from host once)").
func (r *Request) Method(ctx context.Context) (string, error) {
	if r.methodRead {
		return r.method, nil
	}
	m, err := r.host.ReqMethodGet(ctx, r.Handle)
	if err != nil {
		return "", err
	}
	r.method = m
	r.methodRead = true
	return m, nil
}

// SetMethod normalizes and sets the method, mirroring to the host.
func (r *Request) SetMethod(ctx context.Context, method string) error {
	canon := NormalizeMethod(method)
	if err := r.host.ReqMethodSet(ctx, r.Handle, canon); err != nil {
		return err
	}
	r.method = canon
	r.methodRead = true
	return nil
}

// SetCacheOverride mirrors req_cache_override_v2_set for this request.
func (r *Request) SetCacheOverride(ctx context.Context, tag hostabi.CacheOverrideTag, ttlSeconds, swrSeconds uint32, surrogateKey string) error {
	return r.host.ReqCacheOverrideV2Set(ctx, r.Handle, tag, ttlSeconds, swrSeconds, surrogateKey)
}

// ResponseFuture is a single-resolution future for a Request's eventual
// Response, the Go-idiomatic stand-in for the spec's "response_promise".
// Exactly one of Resolve/Reject may ever be called.
type ResponseFuture struct {
	once sync.Once
	done chan struct{}
	resp *Response
	err  error
}

// NewResponseFuture returns an unresolved future.
func NewResponseFuture() *ResponseFuture {
	return &ResponseFuture{done: make(chan struct{})}
}

// Resolve fulfils the future with resp. A second call is a no-op, matching
// the spec's "resolves exactly once" ordering guarantee.
func (f *ResponseFuture) Resolve(resp *Response) {
	f.once.Do(func() {
		f.resp = resp
		close(f.done)
	})
}

// Reject fulfils the future with an error.
func (f *ResponseFuture) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Await blocks until the future settles or ctx is cancelled.
func (f *ResponseFuture) Await(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
