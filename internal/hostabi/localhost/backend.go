package localhost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"

	"github.com/eugener/saru/internal/config"
)

// backendClient is one configured backend's outbound HTTP transport,
// resolved through a shared dnscache.Resolver so repeated calls to the same
// backend don't re-resolve its name on every request.
type backendClient struct {
	name    string
	baseURL string
	maxRPS  int
	client  *http.Client
}

func newBackendClient(b config.BackendEntry, resolver *dnscache.Resolver) *backendClient {
	timeout := time.Duration(b.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				host, port = addr, ""
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			dialer := &net.Dialer{}
			var lastErr error
			for _, ip := range ips {
				target := ip
				if port != "" {
					target = net.JoinHostPort(ip, port)
				}
				conn, err := dialer.DialContext(ctx, network, target)
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		},
	}

	return &backendClient{
		name:    b.Name,
		baseURL: b.BaseURL,
		maxRPS:  b.MaxRPS,
		client:  &http.Client{Transport: transport, Timeout: timeout},
	}
}

const maxBackendResponseBytes = 16 * 1024 * 1024

// statusError wraps an HTTP response status for circuitbreaker.ClassifyError.
// It is never surfaced to the guest: an HTTP error status is a perfectly
// valid Response, not a failed fetch.
type statusError struct{ status int }

func (e *statusError) Error() string   { return fmt.Sprintf("backend responded %d", e.status) }
func (e *statusError) HTTPStatus() int { return e.status }

// do issues one outbound request and returns the response's status, headers,
// and fully-read body. transportErr is non-nil only for network-level
// failures (connection refused, timeout, DNS failure) that fetch() surfaces
// as a NetworkError; an HTTP error status is returned as a normal response.
func (c *backendClient) do(ctx context.Context, method, uri string, headers http.Header, body []byte) (status int, respHeaders http.Header, respBody []byte, transportErr error) {
	url := c.baseURL + uri

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header = headers.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxBackendResponseBytes))
	if err != nil {
		return 0, nil, nil, err
	}

	return resp.StatusCode, resp.Header.Clone(), respBody, nil
}

// classifyOutcome returns the error circuitbreaker.ClassifyError weighs for
// one backend call: transportErr if the round trip itself failed, a
// statusError for a 4xx/5xx status, otherwise nil.
func classifyOutcome(status int, transportErr error) error {
	if transportErr != nil {
		return transportErr
	}
	if status >= 400 {
		return &statusError{status: status}
	}
	return nil
}
