// Package logging defines the minimal structured-logging interface used by
// filegate services and sweeps. The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware structured logger. The variadic args are
// key-value pairs:
//
//	log.Info(ctx, "sweep finished", "expired", n)
type Logger interface {
	// Debug logs fine-grained diagnostic detail.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal operational events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value
	// pairs.
	With(args ...any) Logger
}
