package middleware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// ErrNoToken is returned by a TokenSource that has no token to offer.
var ErrNoToken = errors.New("middleware: no auth token available")

// TokenSource returns the bearer token for a call.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	}
}

// EnvToken returns a TokenSource that reads the token from the named
// environment variable on every call, so rotated tokens are picked up.
func EnvToken(name string) TokenSource {
	return func(context.Context) (string, error) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return "", fmt.Errorf("%w: %s is not set", ErrNoToken, name)
		}
		return token, nil
	}
}

// AuthOption configures the bearer token middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	logger      logging.Logger
	skipMethods map[string]bool
	optional    bool
}

// WithAuthLogger sets the logger for auth events.
func WithAuthLogger(l logging.Logger) AuthOption {
	return func(c *authConfig) {
		c.logger = l
	}
}

// WithAuthSkipMethods specifies methods sent without a token. By default
// every call, the handshake included, carries one.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthOptional sends the request without a token instead of failing
// when the source has none.
func WithAuthOptional() AuthOption {
	return func(c *authConfig) {
		c.optional = true
	}
}

// BearerToken returns middleware that attaches "Authorization: Bearer
// <token>" to the request metadata of each call. Header-carrying
// transports forward it; per-call metadata takes precedence over a
// transport-wide token.
func BearerToken(source TokenSource, opts ...AuthOption) Middleware {
	cfg := &authConfig{skipMethods: make(map[string]bool)}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := logging.OrNop(cfg.logger)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			token, err := source(ctx)
			if err != nil {
				if cfg.optional && errors.Is(err, ErrNoToken) {
					return next(ctx, req)
				}
				logger.Warn("auth token unavailable",
					logging.F("method", req.Method),
					logging.F("error", err.Error()),
				)
				return nil, fmt.Errorf("auth token for %s: %w", req.Method, err)
			}

			if !strings.HasPrefix(token, "Bearer ") {
				token = "Bearer " + token
			}
			ctx = protocol.SetRequestMeta(ctx, "Authorization", token)
			return next(ctx, req)
		}
	}
}
