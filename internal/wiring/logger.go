package wiring

import (
	"context"
	"fmt"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

// Logger wraps a single log endpoint handle, backing fastly.getLogger.
type Logger struct {
	name   string
	handle saru.Handle
	host   hostabi.Log
}

// OpenLogger opens name via the host.
func OpenLogger(ctx context.Context, host hostabi.Log, name string) (*Logger, error) {
	h, err := host.LogEndpointGet(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("logger %q: open: %w", name, err)
	}
	return &Logger{name: name, handle: h, host: host}, nil
}

// Log writes msg to the endpoint.
func (l *Logger) Log(ctx context.Context, msg string) error {
	_, err := l.host.LogWrite(ctx, l.handle, msg)
	if err != nil {
		return fmt.Errorf("logger %q: write: %w", l.name, err)
	}
	return nil
}
