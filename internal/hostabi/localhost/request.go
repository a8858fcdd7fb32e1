package localhost

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/eugener/saru/internal/circuitbreaker"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
)

// reqEntry is the reference host's Request handle payload.
type reqEntry struct {
	mu      sync.Mutex
	method  string
	uri     string
	headers http.Header
	version int

	cacheOverrideSet bool
	cacheOverride    cacheOverrideState
}

type cacheOverrideState struct {
	tag          hostabi.CacheOverrideTag
	ttlSeconds   uint32
	swrSeconds   uint32
	surrogateKey string
}

// pendingEntry is one in-flight ReqSendAsync call; done closes once the
// backend round trip (or its failure) is ready for req_pending_req_select.
type pendingEntry struct {
	done chan struct{}
	resp saru.Handle
	body saru.Handle
	err  error
}

func errInvalidHandle(fn string) error {
	return saruerr.NewHostCallError(fn, saruerr.InvalidHandle)
}

func (s *Session) req(fn string, h saru.Handle) (*reqEntry, error) {
	e, ok := s.requests.get(h)
	if !ok {
		return nil, errInvalidHandle(fn)
	}
	return e, nil
}

// ReqNew creates a new, empty outbound request handle (method "GET", no
// headers), mirroring new Request() before the guest populates it.
func (s *Session) ReqNew(ctx context.Context) (saru.Handle, error) {
	return s.requests.new(&reqEntry{
		method:  http.MethodGet,
		headers: make(http.Header),
		version: 1,
	}), nil
}

func (s *Session) ReqMethodGet(ctx context.Context, h saru.Handle) (string, error) {
	e, err := s.req("req_method_get", h)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.method, nil
}

func (s *Session) ReqMethodSet(ctx context.Context, h saru.Handle, method string) error {
	e, err := s.req("req_method_set", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.method = method
	return nil
}

func (s *Session) ReqURIGet(ctx context.Context, h saru.Handle) (string, error) {
	e, err := s.req("req_uri_get", h)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uri, nil
}

func (s *Session) ReqURISet(ctx context.Context, h saru.Handle, uri string) error {
	e, err := s.req("req_uri_set", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uri = uri
	return nil
}

func (s *Session) ReqVersionGet(ctx context.Context, h saru.Handle) (int, error) {
	e, err := s.req("req_version_get", h)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, nil
}

func (s *Session) ReqHeaderNamesGet(ctx context.Context, h saru.Handle) ([]string, error) {
	e, err := s.req("req_header_names_get", h)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.headers))
	for name := range e.headers {
		names = append(names, name)
	}
	return names, nil
}

func (s *Session) ReqHeaderValuesGet(ctx context.Context, h saru.Handle, name string) ([]string, error) {
	e, err := s.req("req_header_values_get", h)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	values, ok := e.headers[http.CanonicalHeaderKey(name)]
	if !ok {
		return nil, saruerr.NewHostCallError("req_header_values_get", saruerr.None)
	}
	return values, nil
}

func (s *Session) ReqHeaderInsert(ctx context.Context, h saru.Handle, name, value string) error {
	e, err := s.req("req_header_insert", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Set(name, value)
	return nil
}

func (s *Session) ReqHeaderAppend(ctx context.Context, h saru.Handle, name, value string) error {
	e, err := s.req("req_header_append", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Add(name, value)
	return nil
}

func (s *Session) ReqHeaderRemove(ctx context.Context, h saru.Handle, name string) error {
	e, err := s.req("req_header_remove", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Del(name)
	return nil
}

// ReqSendAsync dispatches h's request (with body's bytes, read fully at
// send time) against backend, subject to that backend's circuit breaker and
// rate limiter, and returns a pending handle the core polls with
// ReqPendingReqSelect.
func (s *Session) ReqSendAsync(ctx context.Context, h saru.Handle, body saru.Handle, backend string) (saru.Handle, error) {
	reqE, err := s.req("req_send_async", h)
	if err != nil {
		return saru.Invalid, err
	}
	bodyE, ok := s.bodies.get(body)
	if !ok {
		return saru.Invalid, errInvalidHandle("req_send_async")
	}

	client, berr := s.host.backendFor(backend)
	if berr != nil {
		return saru.Invalid, saruerr.NewHostCallError("req_send_async", saruerr.InvalidArgument)
	}

	pe := &pendingEntry{done: make(chan struct{})}
	handle := s.pending.new(pe)

	reqE.mu.Lock()
	method, uri, hdr := reqE.method, reqE.uri, reqE.headers.Clone()
	override := reqE.cacheOverride
	hasOverride := reqE.cacheOverrideSet
	reqE.mu.Unlock()

	bodyE.mu.Lock()
	payload := append([]byte(nil), bodyE.data[bodyE.off:]...)
	bodyE.mu.Unlock()

	breaker := s.host.breakers.GetOrCreate(client.name)
	limiter := s.host.limiters.GetOrCreate(client.name, client.maxRPS)

	cacheKey := method + " " + uri
	cacheable := method == http.MethodGet && hasOverride && override.tag&hostabi.CacheOverridePass == 0

	go func() {
		defer close(pe.done)

		if cacheable {
			if entry, err := s.host.store.cacheGet(ctx, cacheKey); err == nil {
				now := time.Now()
				if entry.Fresh(now) || entry.Stale(now) {
					pe.resp = s.responses.new(&respEntry{status: entry.Status, headers: entry.Headers, version: 1})
					pe.body = s.bodies.new(&bodyEntry{data: entry.Body})
					return
				}
			}
		}

		if !breaker.Allow() {
			pe.err = saruerr.ErrNetwork
			return
		}
		if res := limiter.Allow(); !res.Allowed {
			breaker.RecordError(0)
			pe.err = saruerr.ErrNetwork
			return
		}

		status, respHeaders, respBody, transportErr := client.do(ctx, method, uri, hdr, payload)
		weight := circuitbreaker.ClassifyError(classifyOutcome(status, transportErr))
		if weight == 0 {
			breaker.RecordSuccess()
		} else {
			breaker.RecordError(weight)
		}
		if transportErr != nil {
			pe.err = saruerr.ErrNetwork
			return
		}

		pe.resp = s.responses.new(&respEntry{status: status, headers: respHeaders, version: 1})
		pe.body = s.bodies.new(&bodyEntry{data: respBody})

		if hasOverride && override.tag&hostabi.CacheOverridePCI != 0 && override.surrogateKey != "" {
			s.host.store.cachePurgeSurrogateKey(ctx, override.surrogateKey)
		}
		if cacheable && override.tag&hostabi.CacheOverrideTTL != 0 {
			s.host.store.cachePut(ctx, cacheKey, &cacheEntry{
				Status:       status,
				Headers:      respHeaders,
				Body:         respBody,
				SurrogateKey: override.surrogateKey,
				StoredAt:     time.Now(),
				TTL:          time.Duration(override.ttlSeconds) * time.Second,
				SWR:          time.Duration(override.swrSeconds) * time.Second,
			})
		}
	}()

	return handle, nil
}

// ReqPendingReqSelect blocks until one of handles is ready, returning its
// index plus the resulting response/body handles. A backend call that failed
// resolves with saru.Invalid handles and a nil error; a non-nil error means an
// unknown handle or a cancelled ctx.
func (s *Session) ReqPendingReqSelect(ctx context.Context, handles []saru.Handle) (hostabi.PendingSelectResult, error) {
	entries := make([]*pendingEntry, len(handles))
	for i, h := range handles {
		pe, ok := s.pending.get(h)
		if !ok {
			return hostabi.PendingSelectResult{}, errInvalidHandle("req_pending_req_select")
		}
		entries[i] = pe
	}

	cases := make([]reflect.SelectCase, len(entries)+1)
	for i, pe := range entries {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(pe.done)}
	}
	cases[len(entries)] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}

	chosen, _, _ := reflect.Select(cases)
	if chosen == len(entries) {
		return hostabi.PendingSelectResult{}, ctx.Err()
	}
	pe := entries[chosen]
	if pe.err != nil {
		// A per-request network failure resolves with an invalid response
		// handle rather than a host-call error; the core rejects that
		// specific request's future and keeps pumping the others.
		return hostabi.PendingSelectResult{Index: chosen, Response: saru.Invalid, Body: saru.Invalid}, nil
	}
	return hostabi.PendingSelectResult{Index: chosen, Response: pe.resp, Body: pe.body}, nil
}

func (s *Session) ReqBodyDownstreamGet(ctx context.Context) (saru.Handle, saru.Handle, error) {
	if !s.downstreamReq.Valid() {
		return saru.Invalid, saru.Invalid, saruerr.NewHostCallError("req_body_downstream_get", saruerr.InvalidHandle)
	}
	return s.downstreamReq, s.downstreamBody, nil
}

func (s *Session) ReqDownstreamClientIPAddr(ctx context.Context) ([]byte, error) {
	if ip4 := s.clientIP.To4(); ip4 != nil {
		return ip4, nil
	}
	return s.clientIP.To16(), nil
}

func (s *Session) ReqCacheOverrideV2Set(ctx context.Context, h saru.Handle, tag hostabi.CacheOverrideTag, ttlSeconds, swrSeconds uint32, surrogateKey string) error {
	e, err := s.req("req_cache_override_v2_set", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheOverrideSet = true
	e.cacheOverride = cacheOverrideState{
		tag:          tag,
		ttlSeconds:   ttlSeconds,
		swrSeconds:   swrSeconds,
		surrogateKey: surrogateKey,
	}
	return nil
}
