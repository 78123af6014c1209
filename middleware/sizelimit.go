package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// ErrRequestTooLarge is returned when request params exceed the size limit.
var ErrRequestTooLarge = errors.New("middleware: request too large")

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger logging.Logger
}

// WithSizeLimitLogger sets the logger for size limit events.
func WithSizeLimitLogger(l logging.Logger) SizeLimitOption {
	return func(o *sizeLimitConfig) {
		o.logger = l
	}
}

// SizeLimit returns middleware that refuses to send requests whose params
// exceed maxBytes. The request never reaches the transport.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Middleware {
	cfg := &sizeLimitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := logging.OrNop(cfg.logger)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if size := int64(len(req.Params)); size > maxBytes {
				logger.Warn("request size limit exceeded",
					logging.F("method", req.Method),
					logging.F("size", size),
					logging.F("max", maxBytes),
				)
				return nil, fmt.Errorf("%w: %s params are %d bytes, limit is %d", ErrRequestTooLarge, req.Method, size, maxBytes)
			}

			return next(ctx, req)
		}
	}
}

// Common size limit presets.
const (
	// KB is 1024 bytes.
	KB = 1024
	// MB is 1024 * 1024 bytes.
	MB = 1024 * 1024
)
