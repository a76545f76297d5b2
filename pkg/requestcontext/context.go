// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services and handlers read
// them without importing net/http.
package requestcontext

import (
	"context"

	"selfid/pkg/domain"
)

type (
	callerKey    struct{}
	requestIDKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyCaller    = callerKey{}
	ContextKeyRequestID = requestIDKey{}
)

// Caller retrieves the authenticated principal address from the context.
// Returns the zero address if not set.
func Caller(ctx context.Context) domain.Address {
	if addr, ok := ctx.Value(ContextKeyCaller).(domain.Address); ok {
		return addr
	}
	return ""
}

// WithCaller injects an authenticated principal address into the context.
func WithCaller(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, addr)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
