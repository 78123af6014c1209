package client

import (
	"time"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/middleware"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// DefaultTimeout bounds every call that carries no earlier deadline.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	info        protocol.Implementation
	protocolVer string
	strict      bool
	nextID      IDGenerator
	middlewares []middleware.Middleware
	logger      logging.Logger
}

// WithTimeout sets the default timeout for requests. Expiry is reported as
// transport.ErrTimeout. Zero disables it and leaves the transport's own
// timeout in charge.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithClientInfo sets the client name and version for initialization.
func WithClientInfo(name, version string) Option {
	return func(o *clientOptions) {
		o.info = protocol.Implementation{Name: name, Version: version}
	}
}

// WithProtocolVersion sets the protocol version to use.
func WithProtocolVersion(version string) Option {
	return func(o *clientOptions) {
		o.protocolVer = version
	}
}

// WithStrictProtocolVersion makes Initialize fail when the server answers
// with a different protocol version.
func WithStrictProtocolVersion() Option {
	return func(o *clientOptions) {
		o.strict = true
	}
}

// WithIDGenerator sets the source of request ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *clientOptions) {
		o.nextID = gen
	}
}

// WithMiddleware wraps every outgoing call. The first middleware is the
// outermost.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(o *clientOptions) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithLogger sets the client logger.
func WithLogger(l logging.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}
