package localhost

import (
	"context"
	"log/slog"

	"github.com/eugener/saru/internal/saru"
)

// LogEndpointGet resolves name to a handle. Like dictionaries, any name is
// accepted; an endpoint not present in config simply logs to the dev
// harness's own structured logger under that name.
func (s *Session) LogEndpointGet(ctx context.Context, name string) (saru.Handle, error) {
	return s.logs.new(name), nil
}

// LogWrite emits msg through slog, tagged with the endpoint name, standing
// in for the real host's log-endpoint fan-out (syslog, HTTPS, S3, ...).
func (s *Session) LogWrite(ctx context.Context, h saru.Handle, msg string) (int, error) {
	name, ok := s.logs.get(h)
	if !ok {
		return 0, errInvalidHandle("log_write")
	}
	slog.LogAttrs(ctx, slog.LevelInfo, "fastly log",
		slog.String("endpoint", name),
		slog.String("msg", msg),
	)
	return len(msg), nil
}
