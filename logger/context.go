package logger

import (
	"context"
	"log/slog"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	LoggerKey ContextKey = "logger"
)

// FromContext retrieves the logger from the context.
// If no logger is found, it returns the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithParticipation adds a participation id to the logger in the context.
// Reconciliation paths are keyed by participation, so most log lines
// downstream of a webhook carry it.
func WithParticipation(ctx context.Context, participationID string) context.Context {
	l := FromContext(ctx).With("participation_id", participationID)
	return WithLogger(ctx, l)
}
