package httpobj

import (
	"context"
	"fmt"

	"github.com/eugener/saru/internal/headers"
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

// TLSInfo carries the upstream TLS connection details the original runtime
// exposes alongside an upstream response (supplemented feature, not present
// in the distilled spec's Response fields).
type TLSInfo struct {
	ProtocolVersion string
	CipherSuite     string
	ClientCertVerified bool
}

// Response adds a cached status and the is_upstream flag to Base.
type Response struct {
	Base

	host hostabi.Response

	Status     int
	IsUpstream bool
	TLS        *TLSInfo
}

// NewResponse allocates a fresh response handle via the host, with
// Standalone headers and status 200 (the guest-constructed default before
// any explicit status is set).
func NewResponse(ctx context.Context, host hostabi.Response, body hostabi.Body) (*Response, error) {
	h, err := host.RespNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("response new: %w", err)
	}
	bh, err := saru.NewBody(ctx, body)
	if err != nil {
		return nil, err
	}
	resp := &Response{Base: Base{Handle: h, Body: bh}, host: host, Status: 200}
	resp.Headers = headers.New()
	if err := host.RespStatusSet(ctx, h, 200); err != nil {
		return nil, err
	}
	return resp, nil
}

// WrapUpstreamResponse wraps the handles returned for a completed fetch:
// status is cached on construction, headers proxy lazily (spec §3: Response
// adds "status (u16, cached on construction)"; "is_upstream implies headers
// are lazy").
func WrapUpstreamResponse(ctx context.Context, host hostabi.Response, bodyHost hostabi.Body, respHandle, bodyHandle saru.Handle) (*Response, error) {
	status, err := host.RespStatusGet(ctx, respHandle)
	if err != nil {
		return nil, fmt.Errorf("response: status get: %w", err)
	}
	resp := &Response{
		Base:       Base{Handle: respHandle, Body: saru.WrapBody(bodyHandle, bodyHost), HasBody: true},
		host:       host,
		Status:     status,
		IsUpstream: true,
	}
	hdrs, err := headers.NewProxy(ctx, headers.ProxyToResponse, responseHeaderProxy{host: host, h: respHandle}, true)
	if err != nil {
		return nil, err
	}
	resp.Headers = hdrs
	return resp, nil
}

// SetStatus sets and re-caches the status.
func (r *Response) SetStatus(ctx context.Context, status int) error {
	if err := r.host.RespStatusSet(ctx, r.Handle, status); err != nil {
		return err
	}
	r.Status = status
	return nil
}

// SendDownstream mirrors resp_send_downstream for the response identified
// by this Response, with the given streaming flag.
func (r *Response) SendDownstream(ctx context.Context, streaming bool) error {
	return r.host.RespSendDownstream(ctx, r.Handle, r.Body.Handle(), streaming)
}
