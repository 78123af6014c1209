// Package mcp provides a client for the Model Context Protocol (MCP).
//
// mcp-client-go drives MCP servers over interchangeable transports:
//   - stdio: a spawned subprocess speaking line-delimited JSON
//   - HTTP: a single POST endpoint answering with JSON or an SSE stream
//   - WebSocket: one JSON-RPC message per text frame
//
// Requests may complete in any order; responses are correlated by id.
// Calls run through an optional client-side middleware chain.
//
// Basic usage:
//
//	c, err := mcp.ConnectStdio(ctx, "goldentooth", []string{"mcp", "serve"})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	result, err := c.CallTool(ctx, "uptime", map[string]string{"node": "allyrion"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Text())
package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/client"
	"github.com/felixgeelhaar/mcp-client-go/config"
	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/middleware"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/transport"
)

// Re-export core types for convenience

// Client is the typed MCP client.
type Client = client.Client

// ClientOption configures a Client.
type ClientOption = client.Option

// ServerInfo contains information about the connected server.
type ServerInfo = client.ServerInfo

// Transport is a client-side MCP channel.
type Transport = transport.Transport

// Message types
type Request = protocol.Request
type Response = protocol.Response
type Notification = protocol.Notification
type Error = protocol.Error
type ID = protocol.ID

// Result types
type Tool = protocol.Tool
type CallToolResult = protocol.CallToolResult
type Content = protocol.Content
type Resource = protocol.Resource
type ReadResourceResult = protocol.ReadResourceResult
type Prompt = protocol.Prompt
type GetPromptResult = protocol.GetPromptResult

// Middleware wraps outgoing calls.
type Middleware = middleware.Middleware

// Logger is the structured logging interface.
type Logger = logging.Logger

// Transport errors
var (
	ErrConnectionClosed = transport.ErrConnectionClosed
	ErrTimeout          = transport.ErrTimeout
)

// ConnectStdio spawns command with args, performs the handshake and
// returns a ready client. The child is stopped when the client is closed.
func ConnectStdio(ctx context.Context, command string, args []string, opts ...ClientOption) (*Client, error) {
	return connect(ctx, transport.NewStdio(command, args, transport.WithQuiet()), opts)
}

// ConnectHTTP connects to the MCP endpoint at url, which is used as given.
// Use transport.EndpointURL to derive it from a base address.
func ConnectHTTP(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	return connect(ctx, transport.NewHTTP(url, transport.WithStartProbe()), opts)
}

// ConnectConfig loads the configuration file at path, builds the
// transport, logger and client it describes, and performs the handshake.
// Extra options are applied after those from the file.
func ConnectConfig(ctx context.Context, path string, opts ...ClientOption) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return ConnectWith(ctx, cfg, opts...)
}

// ConnectWith is ConnectConfig for an already loaded configuration.
// Log output of the configured backend goes to stderr.
func ConnectWith(ctx context.Context, cfg *config.Config, opts ...ClientOption) (*Client, error) {
	logger, _, err := config.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	t, err := config.NewTransport(cfg.Transport, logger)
	if err != nil {
		return nil, err
	}

	all := append(config.ClientOptions(cfg.Client, logger), opts...)
	return connect(ctx, t, all)
}

func connect(ctx context.Context, t Transport, opts []ClientOption) (*Client, error) {
	c := client.New(t, opts...)
	if _, err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp: %w", err)
	}
	return c, nil
}

// Client options

// WithTimeout sets the default timeout for requests.
func WithTimeout(d time.Duration) ClientOption {
	return client.WithTimeout(d)
}

// WithClientInfo sets the client name and version sent on initialize.
func WithClientInfo(name, version string) ClientOption {
	return client.WithClientInfo(name, version)
}

// WithMiddleware wraps every outgoing call.
func WithMiddleware(m ...Middleware) ClientOption {
	return client.WithMiddleware(m...)
}

// WithLogger sets the client logger.
func WithLogger(l Logger) ClientOption {
	return client.WithLogger(l)
}

// Middleware helpers

// Chain combines multiple middleware into one.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// DefaultMiddleware returns the recommended stack: recover, request id
// and logging.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout is DefaultMiddleware plus a per-call timeout.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a log field.
func LogF(key string, value any) logging.Field {
	return logging.F(key, value)
}
