package types

import (
	"context"
	"log/slog"
)

// Unexported key types keep other packages from colliding with these values.
type (
	requestIDCtxKey struct{}
	loggerCtxKey    struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// GetRequestID returns the correlation ID set by the request ID middleware,
// or "" outside a request.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, or fallback when the
// context carries none.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, _ := ctx.Value(loggerCtxKey{}).(*slog.Logger); l != nil {
		return l
	}
	return fallback
}
