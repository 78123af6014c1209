package transport

import (
	"context"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// Transport is a client-side MCP channel. Implementations are safe for
// concurrent use.
type Transport interface {
	// Start establishes the channel. A failed Start leaves no partial
	// resources behind and may be retried.
	Start(ctx context.Context) error

	// SendRequest sends req and blocks until the correlated response
	// arrives, the request times out, ctx is cancelled, or the transport
	// is closed.
	SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// SendNotification hands n to the channel without waiting for a reply.
	SendNotification(ctx context.Context, n *protocol.Notification) error

	// Close releases all resources and unblocks pending callers with
	// ErrConnectionClosed. It always returns nil and is terminal.
	Close() error

	// IsConnected reports whether the channel is usable.
	IsConnected() bool
}

// NotificationHandler receives server-initiated notifications.
// It runs on the transport's reader goroutine and must not block.
type NotificationHandler func(n *protocol.Notification)

// UnmatchedHandler receives responses whose id matches no outstanding
// request, typically late answers to requests that already timed out.
type UnmatchedHandler func(resp *protocol.Response)

// Compile-time interface checks.
var (
	_ Transport = (*Stdio)(nil)
	_ Transport = (*HTTP)(nil)
	_ Transport = (*WebSocket)(nil)
)
