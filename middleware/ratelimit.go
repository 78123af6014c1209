package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// ErrRateLimited is returned when an outgoing call exceeds the rate limit.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc func(*protocol.Request) string
	logger  logging.Logger
}

// WithRateLimitKeyFunc sets a function to extract a rate limit key from requests.
// This allows per-method or per-tool rate limiting.
func WithRateLimitKeyFunc(fn func(*protocol.Request) string) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l logging.Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns middleware that limits the rate of outgoing requests
// using a token bucket. The rate is specified as requests per second and
// burst allows short bursts above it. Calls over the limit fail with
// ErrRateLimited without reaching the server.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(_ *protocol.Request) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := logging.OrNop(cfg.logger)

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			key := cfg.keyFunc(req)

			if !limiter.Allow(ctx, key) {
				logger.Warn("rate limit exceeded",
					logging.F("method", req.Method),
					logging.F("key", key),
				)
				return nil, ErrRateLimited
			}

			return next(ctx, req)
		}
	}
}

// RateLimitByMethod returns rate limiting middleware that applies per-method limits.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(req *protocol.Request) string {
			return req.Method
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// RateLimitByTool returns rate limiting middleware that applies separate
// limits to each tool invoked through tools/call. Other methods share one
// bucket per method.
func RateLimitByTool(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(toolKey),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

func toolKey(req *protocol.Request) string {
	if req.Method != protocol.MethodToolsCall {
		return req.Method
	}
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return req.Method
	}
	return req.Method + ":" + params.Name
}
