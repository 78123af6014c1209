package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID returns middleware that attaches a correlation id to each call.
// The id is stored in the context and in the request metadata under
// protocol.MetaRequestID, so header-carrying transports forward it. An id
// already present in the context is preserved.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = generator()
				ctx = ContextWithRequestID(ctx, id)
			}
			if protocol.GetRequestMeta(ctx, protocol.MetaRequestID) == "" {
				ctx = protocol.SetRequestMeta(ctx, protocol.MetaRequestID, id)
			}
			return next(ctx, req)
		}
	}
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID returns a new context with the request ID set.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
