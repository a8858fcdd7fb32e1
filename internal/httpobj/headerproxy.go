package httpobj

import (
	"context"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

// requestHeaderProxy adapts hostabi.Request's header family to
// headers.HostProxy for one request handle.
type requestHeaderProxy struct {
	host hostabi.Request
	h    saru.Handle
}

func (p requestHeaderProxy) NamesGet(ctx context.Context) ([]string, error) {
	return p.host.ReqHeaderNamesGet(ctx, p.h)
}
func (p requestHeaderProxy) ValuesGet(ctx context.Context, name string) ([]string, error) {
	return p.host.ReqHeaderValuesGet(ctx, p.h, name)
}
func (p requestHeaderProxy) Insert(ctx context.Context, name, value string) error {
	return p.host.ReqHeaderInsert(ctx, p.h, name, value)
}
func (p requestHeaderProxy) Append(ctx context.Context, name, value string) error {
	return p.host.ReqHeaderAppend(ctx, p.h, name, value)
}
func (p requestHeaderProxy) Remove(ctx context.Context, name string) error {
	return p.host.ReqHeaderRemove(ctx, p.h, name)
}

// responseHeaderProxy adapts hostabi.Response's header family to
// headers.HostProxy for one response handle.
type responseHeaderProxy struct {
	host hostabi.Response
	h    saru.Handle
}

func (p responseHeaderProxy) NamesGet(ctx context.Context) ([]string, error) {
	return p.host.RespHeaderNamesGet(ctx, p.h)
}
func (p responseHeaderProxy) ValuesGet(ctx context.Context, name string) ([]string, error) {
	return p.host.RespHeaderValuesGet(ctx, p.h, name)
}
func (p responseHeaderProxy) Insert(ctx context.Context, name, value string) error {
	return p.host.RespHeaderInsert(ctx, p.h, name, value)
}
func (p responseHeaderProxy) Append(ctx context.Context, name, value string) error {
	return p.host.RespHeaderAppend(ctx, p.h, name, value)
}
func (p responseHeaderProxy) Remove(ctx context.Context, name string) error {
	return p.host.RespHeaderRemove(ctx, p.h, name)
}
