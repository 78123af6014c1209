// Package testutil provides fake MCP servers for testing clients and
// transports.
//
// A Server answers the standard MCP methods from registered tools,
// resources and prompts. It can be exposed over stdio with ServeStdio,
// over HTTP with NewHTTPServer, or over WebSocket with NewWebSocketServer.
//
// Example usage:
//
//	func TestUptime(t *testing.T) {
//	    srv := testutil.NewServer("cluster", "1.0.0").
//	        Tool("uptime", "Node uptime", func(args map[string]any) (string, error) {
//	            return "up 3 days", nil
//	        })
//
//	    hs := testutil.NewHTTPServer(t, srv)
//	    c := client.New(transport.NewHTTP(hs.Endpoint))
//	    ...
//	}
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// ToolFunc executes a tool call.
type ToolFunc func(args map[string]any) (string, error)

// PromptFunc renders a prompt.
type PromptFunc func(args map[string]string) string

// HandlerFunc overrides the answer to one method. Returning a nil
// response and nil error sends no reply.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

type tool struct {
	info protocol.Tool
	fn   ToolFunc
}

type resource struct {
	info protocol.Resource
	text string
}

type prompt struct {
	info   protocol.Prompt
	render PromptFunc
}

// Server is an in-memory MCP server.
type Server struct {
	info            protocol.Implementation
	protocolVersion string

	mu            sync.Mutex
	tools         map[string]tool
	resources     map[string]resource
	prompts       map[string]prompt
	overrides     map[string]HandlerFunc
	requests      []*protocol.Request
	notifications []*protocol.Notification
}

// NewServer creates a server that reports the given name and version.
func NewServer(name, version string) *Server {
	return &Server{
		info:            protocol.Implementation{Name: name, Version: version},
		protocolVersion: protocol.MCPVersion,
		tools:           make(map[string]tool),
		resources:       make(map[string]resource),
		prompts:         make(map[string]prompt),
		overrides:       make(map[string]HandlerFunc),
	}
}

// WithProtocolVersion sets the version reported by initialize.
func (s *Server) WithProtocolVersion(v string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = v
	return s
}

// Tool registers a tool.
func (s *Server) Tool(name, description string, fn ToolFunc) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = tool{
		info: protocol.Tool{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(`{"type":"object"}`),
		},
		fn: fn,
	}
	return s
}

// Resource registers a text resource.
func (s *Server) Resource(uri, name, text string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[uri] = resource{
		info: protocol.Resource{URI: uri, Name: name, MimeType: "text/plain"},
		text: text,
	}
	return s
}

// Prompt registers a prompt with the given argument names.
func (s *Server) Prompt(name, description string, render PromptFunc, args ...string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := prompt{
		info:   protocol.Prompt{Name: name, Description: description},
		render: render,
	}
	for _, a := range args {
		p.info.Arguments = append(p.info.Arguments, protocol.PromptArgument{Name: a, Required: true})
	}
	s.prompts[name] = p
	return s
}

// Handle overrides the answer to method.
func (s *Server) Handle(method string, fn HandlerFunc) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method] = fn
	return s
}

// Requests returns the requests received so far.
func (s *Server) Requests() []*protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Request(nil), s.requests...)
}

// Notifications returns the notifications received so far.
func (s *Server) Notifications() []*protocol.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Notification(nil), s.notifications...)
}

// HandleMessage processes one inbound message and returns the reply, or
// nil when none is due.
func (s *Server) HandleMessage(ctx context.Context, msg protocol.Message) *protocol.Response {
	switch m := msg.(type) {
	case *protocol.Request:
		return s.HandleRequest(ctx, m)
	case *protocol.Notification:
		s.mu.Lock()
		s.notifications = append(s.notifications, m)
		s.mu.Unlock()
	}
	return nil
}

// HandleRequest answers req.
func (s *Server) HandleRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	override := s.overrides[req.Method]
	s.mu.Unlock()

	var (
		resp *protocol.Response
		err  error
	)
	if override != nil {
		resp, err = override(ctx, req)
	} else {
		resp, err = s.dispatch(req)
	}

	if err != nil {
		var mcpErr *protocol.Error
		if errors.As(err, &mcpErr) {
			return protocol.NewErrorResponse(req.ID, mcpErr)
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewInternalError(err.Error()))
	}
	return resp
}

func (s *Server) dispatch(req *protocol.Request) (*protocol.Response, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req)
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, struct{}{})
	case protocol.MethodToolsList:
		return s.handleToolsList(req)
	case protocol.MethodToolsCall:
		return s.handleToolsCall(req)
	case protocol.MethodResourcesList:
		return s.handleResourcesList(req)
	case protocol.MethodResourcesRead:
		return s.handleResourcesRead(req)
	case protocol.MethodPromptsList:
		return s.handlePromptsList(req)
	case protocol.MethodPromptsGet:
		return s.handlePromptsGet(req)
	default:
		return nil, protocol.NewMethodNotFound("method not found: " + req.Method)
	}
}

func (s *Server) handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	var params protocol.InitializeParams
	if err := protocol.DecodeParams(req, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	s.mu.Lock()
	result := protocol.InitializeResult{
		ProtocolVersion: s.protocolVersion,
		ServerInfo:      s.info,
	}
	if len(s.tools) > 0 {
		result.Capabilities.Tools = &protocol.ListChanged{}
	}
	if len(s.resources) > 0 {
		result.Capabilities.Resources = &protocol.ResourceCapabilities{}
	}
	if len(s.prompts) > 0 {
		result.Capabilities.Prompts = &protocol.ListChanged{}
	}
	s.mu.Unlock()

	return protocol.NewResponse(req.ID, result)
}

func (s *Server) handleToolsList(req *protocol.Request) (*protocol.Response, error) {
	s.mu.Lock()
	tools := make([]protocol.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.info)
	}
	s.mu.Unlock()

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return protocol.NewResponse(req.ID, protocol.ListToolsResult{Tools: tools})
}

func (s *Server) handleToolsCall(req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := protocol.DecodeParams(req, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	s.mu.Lock()
	t, ok := s.tools[params.Name]
	s.mu.Unlock()
	if !ok {
		return nil, protocol.NewNotFound("tool not found: " + params.Name)
	}

	text, err := t.fn(params.Arguments)
	if err != nil {
		return protocol.NewResponse(req.ID, protocol.CallToolResult{
			Content: []protocol.Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}
	return protocol.NewResponse(req.ID, protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: text}},
	})
}

func (s *Server) handleResourcesList(req *protocol.Request) (*protocol.Response, error) {
	s.mu.Lock()
	resources := make([]protocol.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, r.info)
	}
	s.mu.Unlock()

	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return protocol.NewResponse(req.ID, protocol.ListResourcesResult{Resources: resources})
}

func (s *Server) handleResourcesRead(req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := protocol.DecodeParams(req, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	s.mu.Lock()
	r, ok := s.resources[params.URI]
	s.mu.Unlock()
	if !ok {
		return nil, protocol.NewNotFound("resource not found: " + params.URI)
	}

	return protocol.NewResponse(req.ID, protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{{URI: r.info.URI, MimeType: r.info.MimeType, Text: r.text}},
	})
}

func (s *Server) handlePromptsList(req *protocol.Request) (*protocol.Response, error) {
	s.mu.Lock()
	prompts := make([]protocol.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		prompts = append(prompts, p.info)
	}
	s.mu.Unlock()

	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Name < prompts[j].Name })
	return protocol.NewResponse(req.ID, protocol.ListPromptsResult{Prompts: prompts})
}

func (s *Server) handlePromptsGet(req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := protocol.DecodeParams(req, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	s.mu.Lock()
	p, ok := s.prompts[params.Name]
	s.mu.Unlock()
	if !ok {
		return nil, protocol.NewNotFound("prompt not found: " + params.Name)
	}

	for _, a := range p.info.Arguments {
		if _, ok := params.Arguments[a.Name]; a.Required && !ok {
			return nil, protocol.NewInvalidParams("missing argument: " + a.Name)
		}
	}

	return protocol.NewResponse(req.ID, protocol.GetPromptResult{
		Description: p.info.Description,
		Messages: []protocol.PromptMessage{{
			Role:    "user",
			Content: protocol.Content{Type: "text", Text: p.render(params.Arguments)},
		}},
	})
}
