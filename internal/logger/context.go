// internal/logger/context.go
//
// Request-scoped loggers.
//
// Context
// -------
// The request logger middleware stores a child logger carrying the request
// id in the request context.  The admin gate adds the admin's email, and
// handlers add site and entity, so every line written for a request can be
// correlated without threading a logger through every call.
//
// FromContext falls back to the global logger (zap.S()), so code running
// outside a request still logs somewhere useful.
package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext or the global one.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}
	return zap.S()
}

// With adds key/value pairs to the logger in ctx and returns the new context.
func With(ctx context.Context, kv ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(kv...))
}
