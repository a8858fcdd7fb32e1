package wiring

import (
	"context"
	"fmt"
	"log/slog"
)

// Console backs the guest's console.{log,info,warn,error,trace}, mapped
// onto structured logging the way the reference host logs everything else.
type Console struct {
	enableDebug bool
}

// NewConsole returns a Console. Debug-level output (console.trace) is gated
// by enableDebugLogging, mirroring fastly.enableDebugLogging.
func NewConsole() *Console { return &Console{} }

// SetDebugLogging toggles whether Trace emits anything.
func (c *Console) SetDebugLogging(v bool) { c.enableDebug = v }

func (c *Console) Log(ctx context.Context, args ...any) {
	slog.LogAttrs(ctx, slog.LevelInfo, "console.log", slog.String("message", fmt.Sprint(args...)))
}

func (c *Console) Info(ctx context.Context, args ...any) {
	slog.LogAttrs(ctx, slog.LevelInfo, "console.info", slog.String("message", fmt.Sprint(args...)))
}

func (c *Console) Warn(ctx context.Context, args ...any) {
	slog.LogAttrs(ctx, slog.LevelWarn, "console.warn", slog.String("message", fmt.Sprint(args...)))
}

func (c *Console) Error(ctx context.Context, args ...any) {
	slog.LogAttrs(ctx, slog.LevelError, "console.error", slog.String("message", fmt.Sprint(args...)))
}

func (c *Console) Trace(ctx context.Context, args ...any) {
	if !c.enableDebug {
		return
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "console.trace", slog.String("message", fmt.Sprint(args...)))
}
