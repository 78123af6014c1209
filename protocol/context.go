package protocol

import (
	"context"
	"maps"
)

// Well-known metadata keys.
const (
	MetaRequestID = "X-Request-Id"
)

type requestMetaKey struct{}

// RequestMeta is per-call metadata attached to an outgoing request.
// Transports that carry headers (HTTP, WebSocket handshakes) forward the
// entries as header fields; the others ignore it.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a new context with the request metadata attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// GetRequestMeta returns one metadata value, or "" when unset.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}

// SetRequestMeta returns a context whose metadata has key set to value.
// The metadata already in ctx is copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := make(RequestMeta, len(RequestMetaFromContext(ctx))+1)
	maps.Copy(meta, RequestMetaFromContext(ctx))
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
