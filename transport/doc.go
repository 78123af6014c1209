// Package transport provides client-side MCP transport implementations.
//
// Every transport satisfies the Transport interface: Start establishes
// the channel, SendRequest blocks until the correlated response arrives,
// SendNotification is fire-and-forget, and Close is terminal.
//
// # Stdio Transport
//
// The stdio transport spawns the server as a child process and exchanges
// line-delimited JSON over its stdin and stdout. Lines that do not look
// like JSON-RPC messages are logged and skipped, so servers that print
// banners or log lines to stdout still work:
//
//	t := transport.NewStdio("cluster-mcp-server", nil,
//	    transport.WithQuiet(),
//	    transport.WithRequestTimeout(30*time.Second),
//	)
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
//
// # HTTP Transport
//
// The HTTP transport posts each message to a single endpoint. The server
// may answer with a JSON body or with a Server-Sent Events stream; both
// are accepted:
//
//	t := transport.NewHTTP(transport.EndpointURL("https://mcp.example.net"),
//	    transport.WithAuthToken(token),
//	    transport.WithStartProbe(),
//	)
//
// # WebSocket Transport
//
// The WebSocket transport keeps one connection open and carries one
// message per text frame.
//
// # Errors
//
// Failures are reported with a fixed taxonomy: *SpawnError and
// *ConnectionError when the channel cannot be established; ErrTimeout,
// ErrConnectionClosed and ErrDuplicateID for in-flight requests;
// *HTTPError for non-2xx statuses; *ProtocolError for replies that are
// not a valid answer. Errors reported by the server itself arrive inside
// the *protocol.Response.
package transport
