// Package requestcontext provides HTTP-independent accessors for request-scoped
// values. Middleware sets them; handlers and log calls read them.
//
//	requestID := requestcontext.RequestID(ctx)
//	ctx = requestcontext.WithClientIP(ctx, "10.0.0.1")
package requestcontext

import "context"

type (
	requestIDKey struct{}
	clientIPKey  struct{}
)

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}
