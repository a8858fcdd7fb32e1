package localhost

import (
	"io"
	"net"
	"net/http"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

var _ hostabi.Host = (*Session)(nil)

// Session is one FetchEvent's worth of hostabi.Host state: its own handle
// tables plus a reference back to the shared Host for store/backend access.
// The runtime core is guaranteed to drive exactly one Session from a single
// goroutine, matching hostabi.Host's no-concurrent-calls contract.
type Session struct {
	host *Host

	requests  handleTable[*reqEntry]
	responses handleTable[*respEntry]
	bodies    handleTable[*bodyEntry]
	pending   handleTable[*pendingEntry]
	dicts     handleTable[string]
	logs      handleTable[string]

	downstreamReq  saru.Handle
	downstreamBody saru.Handle
	clientIP       net.IP

	result chan sessionResult
}

type sessionResult struct {
	resp *http.Response
	err  error
}

// NewSession wraps an incoming *http.Request as the downstream request the
// guest's fastly.getBody/fastly.getRequest surface observes, and returns a
// Session ready to drive one dispatch.Loop iteration.
func NewSession(host *Host, downstream *http.Request) (*Session, error) {
	body, err := io.ReadAll(downstream.Body)
	if err != nil {
		return nil, err
	}

	s := &Session{
		host:           host,
		downstreamReq:  saru.Invalid,
		downstreamBody: saru.Invalid,
		clientIP:       clientIPOf(downstream),
		result:         make(chan sessionResult, 1),
	}

	headers := downstream.Header.Clone()
	reqHandle := s.requests.new(&reqEntry{
		method:  downstream.Method,
		uri:     downstream.URL.String(),
		headers: headers,
		version: 1,
	})
	bodyHandle := s.bodies.new(&bodyEntry{data: body})

	s.downstreamReq = reqHandle
	s.downstreamBody = bodyHandle
	return s, nil
}

// clientIPOf extracts the caller's address from r.RemoteAddr, defaulting to
// loopback when absent (e.g. requests built in-process for tests).
func clientIPOf(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	return net.IPv4(127, 0, 0, 1)
}

// Result blocks until RespSendDownstream delivers the guest's final
// response.
func (s *Session) Result() (*http.Response, error) {
	r := <-s.result
	return r.resp, r.err
}

func (s *Session) deliver(resp *http.Response, err error) {
	select {
	case s.result <- sessionResult{resp: resp, err: err}:
	default:
		// RespSendDownstream already delivered once; the core never calls it twice.
	}
}
