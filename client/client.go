// Package client provides a typed MCP client on top of a transport.
//
// A Client performs the initialize handshake, then exposes the tools,
// resources and prompts of the server as Go methods. Every call runs
// through an optional middleware chain whose innermost handler is the
// transport's SendRequest. Notifications pass through the same chain as
// requests with a null id, so metadata such as an Authorization header
// reaches them too.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/middleware"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/transport"
)

// ErrProtocolVersion is returned by Initialize in strict mode when the
// server answers with a different protocol version.
var ErrProtocolVersion = errors.New("client: protocol version mismatch")

// Client is an MCP client that communicates with an MCP server.
type Client struct {
	transport transport.Transport
	opts      clientOptions
	send      middleware.HandlerFunc
	notify    middleware.HandlerFunc
	logger    logging.Logger

	mu         sync.RWMutex
	serverInfo *ServerInfo
}

// ServerInfo contains information about the connected server.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Instructions    string
	Capabilities    Capabilities
}

// Capabilities describes what features the server supports.
type Capabilities struct {
	Tools     bool
	Resources bool
	Prompts   bool
	Logging   bool
}

// New creates a new MCP client with the given transport. The transport is
// started by Connect.
func New(t transport.Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout:     DefaultTimeout,
		info:        protocol.Implementation{Name: "mcp-client-go", Version: "1.0.0"},
		protocolVer: protocol.MCPVersion,
	}

	for _, opt := range opts {
		opt(&options)
	}
	if options.nextID == nil {
		options.nextID = CounterGenerator()
	}

	chain := middleware.Chain(options.middlewares...)
	c := &Client{
		transport: t,
		opts:      options,
		send:      chain(t.SendRequest),
		logger:    logging.OrNop(options.logger),
	}
	c.notify = chain(c.sendNotification)
	return c
}

// Connect starts the transport and performs the handshake.
func (c *Client) Connect(ctx context.Context) (*ServerInfo, error) {
	if err := c.transport.Start(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return c.Initialize(ctx)
}

// Initialize performs the MCP handshake with the server and announces
// completion with notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (*ServerInfo, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: c.opts.protocolVer,
		ClientInfo:      c.opts.info,
	}

	var result protocol.InitializeResult
	if err := c.call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	if result.ProtocolVersion != c.opts.protocolVer {
		if c.opts.strict {
			return nil, fmt.Errorf("initialize: %w: server speaks %s, client %s",
				ErrProtocolVersion, result.ProtocolVersion, c.opts.protocolVer)
		}
		c.logger.Warn("server protocol version differs",
			logging.F("server", result.ProtocolVersion),
			logging.F("client", c.opts.protocolVer),
		)
	}

	if err := c.Notify(ctx, protocol.MethodInitialized, nil); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	info := &ServerInfo{
		Name:            result.ServerInfo.Name,
		Version:         result.ServerInfo.Version,
		ProtocolVersion: result.ProtocolVersion,
		Instructions:    result.Instructions,
		Capabilities: Capabilities{
			Tools:     result.Capabilities.Tools != nil,
			Resources: result.Capabilities.Resources != nil,
			Prompts:   result.Capabilities.Prompts != nil,
			Logging:   result.Capabilities.Logging != nil,
		},
	}

	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()

	c.logger.Info("session initialized",
		logging.F("server", info.Name),
		logging.F("version", info.Version),
		logging.F("protocol", info.ProtocolVersion),
	)
	return info, nil
}

// ListTools returns the tools available on the server, following
// pagination cursors until the last page.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	var tools []protocol.Tool
	err := c.paginate(ctx, protocol.MethodToolsList, func(cursor string) (string, error) {
		var result protocol.ListToolsResult
		if err := c.call(ctx, protocol.MethodToolsList, cursorParams(cursor), &result); err != nil {
			return "", err
		}
		tools = append(tools, result.Tools...)
		return result.NextCursor, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return tools, nil
}

// CallTool calls a tool on the server with the given arguments. A tool
// that fails reports it through the result's IsError flag, not an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*protocol.CallToolResult, error) {
	var result protocol.CallToolResult
	params := protocol.CallToolParams{Name: name, Arguments: arguments}
	if err := c.call(ctx, protocol.MethodToolsCall, params, &result); err != nil {
		return nil, fmt.Errorf("call tool %q: %w", name, err)
	}
	return &result, nil
}

// ListResources returns the resources available on the server.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	var resources []protocol.Resource
	err := c.paginate(ctx, protocol.MethodResourcesList, func(cursor string) (string, error) {
		var result protocol.ListResourcesResult
		if err := c.call(ctx, protocol.MethodResourcesList, cursorParams(cursor), &result); err != nil {
			return "", err
		}
		resources = append(resources, result.Resources...)
		return result.NextCursor, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// ReadResource reads a resource from the server.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	var result protocol.ReadResourceResult
	params := map[string]string{"uri": uri}
	if err := c.call(ctx, protocol.MethodResourcesRead, params, &result); err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}
	return &result, nil
}

// ListPrompts returns the prompts available on the server.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	var prompts []protocol.Prompt
	err := c.paginate(ctx, protocol.MethodPromptsList, func(cursor string) (string, error) {
		var result protocol.ListPromptsResult
		if err := c.call(ctx, protocol.MethodPromptsList, cursorParams(cursor), &result); err != nil {
			return "", err
		}
		prompts = append(prompts, result.Prompts...)
		return result.NextCursor, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

// GetPrompt gets a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error) {
	params := map[string]any{
		"name": name,
	}
	if arguments != nil {
		params["arguments"] = arguments
	}

	var result protocol.GetPromptResult
	if err := c.call(ctx, protocol.MethodPromptsGet, params, &result); err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}
	return &result, nil
}

// Ping sends a ping to the server.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.call(ctx, protocol.MethodPing, nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Notify sends a notification to the server through the middleware chain.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := protocol.NewRequest(protocol.ID{}, method, params)
	if err != nil {
		return err
	}
	_, err = c.notify(ctx, req)
	return err
}

// Call sends an arbitrary request and decodes its result into result,
// which may be nil. Server errors are returned as *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	return c.call(ctx, method, params, result)
}

// ServerInfo returns the cached server info from initialization, or nil
// before the handshake.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

// sendNotification is the innermost handler of the notification chain.
func (c *Client) sendNotification(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	n := &protocol.Notification{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  req.Method,
		Params:  req.Params,
	}
	return nil, c.transport.SendNotification(ctx, n)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req, err := protocol.NewRequest(c.opts.nextID(), method, params)
	if err != nil {
		return err
	}

	callCtx := ctx
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	resp, err := c.send(callCtx, req)
	if err != nil {
		// Our own deadline expiring is a timeout, not a caller cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", transport.ErrTimeout, err)
		}
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	return resp.Decode(result)
}

// paginate calls fetch with successive cursors until a page reports no
// next cursor.
func (c *Client) paginate(ctx context.Context, method string, fetch func(cursor string) (string, error)) error {
	seen := make(map[string]bool)
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := fetch(cursor)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		if seen[next] {
			return fmt.Errorf("%s: server repeated cursor %q", method, next)
		}
		seen[next] = true
		cursor = next
	}
}

func cursorParams(cursor string) any {
	if cursor == "" {
		return nil
	}
	return map[string]string{"cursor": cursor}
}
