package localhost

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
)

// respEntry is the reference host's Response handle payload.
type respEntry struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	version int
}

func (s *Session) resp(fn string, h saru.Handle) (*respEntry, error) {
	e, ok := s.responses.get(h)
	if !ok {
		return nil, errInvalidHandle(fn)
	}
	return e, nil
}

func (s *Session) RespNew(ctx context.Context) (saru.Handle, error) {
	return s.responses.new(&respEntry{
		status:  http.StatusOK,
		headers: make(http.Header),
		version: 1,
	}), nil
}

func (s *Session) RespStatusGet(ctx context.Context, h saru.Handle) (int, error) {
	e, err := s.resp("resp_status_get", h)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, nil
}

func (s *Session) RespStatusSet(ctx context.Context, h saru.Handle, status int) error {
	e, err := s.resp("resp_status_set", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	return nil
}

func (s *Session) RespVersionGet(ctx context.Context, h saru.Handle) (int, error) {
	e, err := s.resp("resp_version_get", h)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, nil
}

func (s *Session) RespHeaderNamesGet(ctx context.Context, h saru.Handle) ([]string, error) {
	e, err := s.resp("resp_header_names_get", h)
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

func (s *Session) RespHeaderValuesGet(ctx context.Context, h saru.Handle, name string) ([]string, error) {
	e, err := s.resp("resp_header_values_get", h)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	values, ok := e.headers[http.CanonicalHeaderKey(name)]
	if !ok {
		return nil, saruerr.NewHostCallError("resp_header_values_get", saruerr.None)
	}
	return values, nil
}

func (s *Session) RespHeaderInsert(ctx context.Context, h saru.Handle, name, value string) error {
	e, err := s.resp("resp_header_insert", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Set(name, value)
	return nil
}

func (s *Session) RespHeaderAppend(ctx context.Context, h saru.Handle, name, value string) error {
	e, err := s.resp("resp_header_append", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Add(name, value)
	return nil
}

func (s *Session) RespHeaderRemove(ctx context.Context, h saru.Handle, name string) error {
	e, err := s.resp("resp_header_remove", h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers.Del(name)
	return nil
}

// RespSendDownstream delivers h as the guest's final response to the
// dev harness caller blocked in Session.Result. streaming is accepted for
// interface conformance; the reference host always drains body to an
// io.Reader it hands to the caller, since the dev harness itself streams
// the bytes on to the real HTTP client.
func (s *Session) RespSendDownstream(ctx context.Context, h saru.Handle, body saru.Handle, streaming bool) error {
	e, err := s.resp("resp_send_downstream", h)
	if err != nil {
		return err
	}
	bodyE, ok := s.bodies.get(body)
	if !ok {
		return errInvalidHandle("resp_send_downstream")
	}

	e.mu.Lock()
	status := e.status
	headers := e.headers.Clone()
	e.mu.Unlock()

	bodyE.mu.Lock()
	data := append([]byte(nil), bodyE.data[bodyE.off:]...)
	bodyE.off = len(bodyE.data)
	bodyE.mu.Unlock()

	s.deliver(&http.Response{
		StatusCode: status,
		Header:     headers,
		Body:       io.NopCloser(bytes.NewReader(data)),
	}, nil)
	return nil
}
