package logger

import "context"

type contextKey string

const loggerKey contextKey = "logger"

// FromContext returns the request-scoped logger, or fallback when none was attached.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return &Logger{}
	}
	return fallback
}

// WithContext attaches a logger to the context.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}
