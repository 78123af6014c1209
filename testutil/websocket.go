package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// WebSocketServer exposes a Server over WebSocket.
type WebSocketServer struct {
	*httptest.Server

	// URL is the ws:// address of the server.
	URL string

	srv      *Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	headers []http.Header
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewWebSocketServer starts a WebSocket server for s. It is closed when
// the test ends.
func NewWebSocketServer(t testing.TB, s *Server) *WebSocketServer {
	t.Helper()

	ws := &WebSocketServer{
		srv: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
	ws.Server = httptest.NewServer(http.HandlerFunc(ws.handleConnection))
	ws.URL = "ws" + strings.TrimPrefix(ws.Server.URL, "http")
	t.Cleanup(ws.Close)

	return ws
}

// Headers returns the handshake headers of every connection so far.
func (ws *WebSocketServer) Headers() []http.Header {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]http.Header(nil), ws.headers...)
}

// Notify sends a notification to every connected client.
func (ws *WebSocketServer) Notify(method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for c := range ws.clients {
		if err := c.writeJSON(n); err != nil {
			return err
		}
	}
	return nil
}

// Close disconnects all clients and stops the server.
func (ws *WebSocketServer) Close() {
	ws.mu.Lock()
	for c := range ws.clients {
		_ = c.conn.Close()
	}
	ws.mu.Unlock()
	ws.Server.Close()
}

func (ws *WebSocketServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}

	ws.mu.Lock()
	ws.clients[client] = struct{}{}
	ws.headers = append(ws.headers, r.Header.Clone())
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, client)
		ws.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Parse(message)
		if err != nil {
			_ = client.writeJSON(protocol.NewErrorResponse(protocol.ID{}, protocol.NewParseError(err.Error())))
			continue
		}

		go func() {
			if resp := ws.srv.HandleMessage(r.Context(), msg); resp != nil {
				_ = client.writeJSON(resp)
			}
		}()
	}
}
