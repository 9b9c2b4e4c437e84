// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. All operations within a single request (or a single
// janitor tick) read the same "now", which keeps expiry decisions consistent
// and lets tests pin the clock without faking time globally.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestTimeKey struct{}
	requestIDKey   struct{}
)

// WithTime injects a specific time into a context. Middleware sets this at
// the start of a request; tests use it to pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now retrieves the request-scoped time, falling back to the wall clock when
// no time has been injected.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithRequestID injects a correlation id into a context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retrieves the correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
