package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// WebSocket implements MCP transport over a WebSocket connection. Each
// text frame carries one JSON-RPC message.
type WebSocket struct {
	url            string
	dialer         *websocket.Dialer
	headers        http.Header
	token          string
	requestTimeout time.Duration
	writeTimeout   time.Duration
	logger         logging.Logger

	onNotification NotificationHandler
	onUnmatched    UnmatchedHandler

	mu         sync.Mutex
	conn       *websocket.Conn
	readerDone chan struct{}
	closed     bool

	writeMu   sync.Mutex
	pending   *pendingTable
	connected atomic.Bool
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketDialer sets the dialer used by Start.
func WithWebSocketDialer(d *websocket.Dialer) WebSocketOption {
	return func(ws *WebSocket) {
		ws.dialer = d
	}
}

// WithWebSocketHeader adds a header to the opening handshake.
func WithWebSocketHeader(key, value string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.headers.Add(key, value)
	}
}

// WithWebSocketAuthToken sends a bearer token on the opening handshake.
func WithWebSocketAuthToken(token string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.token = bearer(token)
	}
}

// WithWebSocketRequestTimeout bounds how long SendRequest waits for a
// response. Zero leaves only the caller's context.
func WithWebSocketRequestTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.requestTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the write timeout for WebSocket messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketLogger sets the logger.
func WithWebSocketLogger(l logging.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = logging.OrNop(l)
	}
}

// WithWebSocketNotificationHandler sets the sink for server notifications.
func WithWebSocketNotificationHandler(h NotificationHandler) WebSocketOption {
	return func(ws *WebSocket) {
		ws.onNotification = h
	}
}

// WithWebSocketUnmatchedHandler sets the sink for responses with unknown ids.
func WithWebSocketUnmatchedHandler(h UnmatchedHandler) WebSocketOption {
	return func(ws *WebSocket) {
		ws.onUnmatched = h
	}
}

// NewWebSocket creates a transport that dials url on Start.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		url:            url,
		dialer:         websocket.DefaultDialer,
		headers:        make(http.Header),
		requestTimeout: DefaultRequestTimeout,
		writeTimeout:   10 * time.Second,
		logger:         logging.Nop(),
		pending:        newPendingTable(),
	}

	for _, opt := range opts {
		opt(ws)
	}

	return ws
}

// Addr returns the transport address.
func (ws *WebSocket) Addr() string {
	return ws.url
}

// Start dials the server and begins reading frames.
func (ws *WebSocket) Start(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.closed {
		return ErrConnectionClosed
	}
	if ws.conn != nil {
		if !ws.connected.Load() {
			return ErrConnectionClosed
		}
		return nil
	}

	header := ws.headers.Clone()
	if ws.token != "" {
		header.Set("Authorization", ws.token)
	}

	conn, resp, err := ws.dialer.DialContext(ctx, ws.url, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w: %w", err, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status})
		}
		return &ConnectionError{Endpoint: ws.url, Err: err}
	}

	ws.conn = conn
	ws.readerDone = make(chan struct{})
	ws.connected.Store(true)

	d := &dispatcher{
		pending:        ws.pending,
		logger:         ws.logger,
		onNotification: ws.onNotification,
		onUnmatched:    ws.onUnmatched,
		reply:          ws.writeFrame,
	}
	go ws.readLoop(conn, d)

	ws.logger.Info("websocket transport started", logging.F("url", ws.url))
	return nil
}

// SendRequest writes req and waits for the matching response.
func (ws *WebSocket) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if !ws.connected.Load() {
		return nil, ErrConnectionClosed
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ch, err := ws.pending.add(req.ID)
	if err != nil {
		return nil, err
	}

	if err := ws.writeFrame(data); err != nil {
		ws.pending.remove(req.ID)
		return nil, fmt.Errorf("%w: write request: %w", ErrConnectionClosed, err)
	}

	return ws.pending.wait(ctx, req.ID, ch, ws.requestTimeout)
}

// SendNotification writes n as one frame.
func (ws *WebSocket) SendNotification(ctx context.Context, n *protocol.Notification) error {
	if !ws.connected.Load() {
		return ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := ws.writeFrame(data); err != nil {
		return fmt.Errorf("%w: write notification: %w", ErrConnectionClosed, err)
	}
	return nil
}

// IsConnected reports whether the socket is open.
func (ws *WebSocket) IsConnected() bool {
	return ws.connected.Load()
}

// Close sends a close frame, closes the socket and fails pending requests
// with ErrConnectionClosed.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	conn := ws.conn
	readerDone := ws.readerDone
	ws.mu.Unlock()

	ws.connected.Store(false)

	if conn != nil {
		ws.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.writeMu.Unlock()
		_ = conn.Close()
		<-readerDone
	}

	ws.pending.closeAll(ErrConnectionClosed)
	ws.logger.Info("websocket transport closed", logging.F("url", ws.url))
	return nil
}

func (ws *WebSocket) writeFrame(data []byte) error {
	ws.mu.Lock()
	conn := ws.conn
	ws.mu.Unlock()
	if conn == nil {
		return ErrConnectionClosed
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	if ws.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(ws.writeTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocket) readLoop(conn *websocket.Conn, d *dispatcher) {
	defer close(ws.readerDone)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && ws.connected.Load() {
				ws.logger.Error("read from server failed", logging.F("error", err))
			}
			break
		}
		d.handle(message)
	}

	ws.connected.Store(false)
	ws.pending.closeAll(ErrConnectionClosed)
}
