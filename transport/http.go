package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

const (
	// DefaultMaxBodySize bounds how much of a response body is read.
	DefaultMaxBodySize = 10 << 20

	// errorBodyLimit bounds the body excerpt kept in an HTTPError.
	errorBodyLimit = 512
)

// HTTP implements MCP transport over a single HTTP endpoint. Every request
// is a POST; the reply is either a JSON body or an SSE stream.
type HTTP struct {
	endpoint       string
	client         *http.Client
	headers        http.Header
	requestTimeout time.Duration
	maxBodySize    int64
	probe          bool
	logger         logging.Logger
	onNotification NotificationHandler

	mu    sync.RWMutex
	token string

	started atomic.Bool
	closed  atomic.Bool
	calls   *callTracker
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		h.headers.Add(key, value)
	}
}

// WithAuthToken sets the initial bearer token.
func WithAuthToken(token string) HTTPOption {
	return func(h *HTTP) {
		h.token = bearer(token)
	}
}

// WithHTTPRequestTimeout bounds each POST including reading the body.
// Zero leaves only the caller's context.
func WithHTTPRequestTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.requestTimeout = d
	}
}

// WithMaxBodySize bounds how many bytes of a response body are read.
func WithMaxBodySize(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBodySize = n
	}
}

// WithStartProbe makes Start ping the endpoint and fail with a
// *ConnectionError when it cannot be reached.
func WithStartProbe() HTTPOption {
	return func(h *HTTP) {
		h.probe = true
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logging.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = logging.OrNop(l)
	}
}

// WithHTTPNotificationHandler sets the sink for notifications found in
// SSE bodies.
func WithHTTPNotificationHandler(fn NotificationHandler) HTTPOption {
	return func(h *HTTP) {
		h.onNotification = fn
	}
}

// NewHTTP creates a transport that posts to endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		endpoint:       endpoint,
		client:         http.DefaultClient,
		headers:        make(http.Header),
		requestTimeout: DefaultRequestTimeout,
		maxBodySize:    DefaultMaxBodySize,
		logger:         logging.Nop(),
		calls:          newCallTracker(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// EndpointURL returns the MCP endpoint under base, which is base with
// "/mcp" appended.
func EndpointURL(base string) string {
	return strings.TrimSuffix(base, "/") + "/mcp"
}

// Addr returns the endpoint URL.
func (h *HTTP) Addr() string {
	return h.endpoint
}

// SetAuthToken sets the token sent as "Authorization: Bearer <token>".
// An empty token removes the header.
func (h *HTTP) SetAuthToken(token string) {
	h.mu.Lock()
	h.token = bearer(token)
	h.mu.Unlock()
}

func (h *HTTP) authorization() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Start marks the transport ready. With WithStartProbe it also pings the
// endpoint.
func (h *HTTP) Start(ctx context.Context) error {
	if h.closed.Load() {
		return ErrConnectionClosed
	}
	if h.started.Load() {
		return nil
	}

	if h.probe {
		if err := h.ping(ctx); err != nil {
			return err
		}
	}

	h.started.Store(true)
	h.logger.Info("http transport started", logging.F("endpoint", h.endpoint))
	return nil
}

func (h *HTTP) ping(ctx context.Context) error {
	req, err := protocol.NewRequest(protocol.StringID("probe"), protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := h.post(ctx, body, true)
	if err != nil {
		return &ConnectionError{Endpoint: h.endpoint, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConnectionError{Endpoint: h.endpoint, Err: &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}}
	}
	return nil
}

// SendRequest posts req and decodes the JSON or SSE reply.
func (h *HTTP) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if !h.IsConnected() {
		return nil, ErrConnectionClosed
	}

	callCtx, done, ok := h.calls.begin(ctx)
	if !ok {
		return nil, ErrConnectionClosed
	}
	defer done()

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, h.requestTimeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	h.logger.Debug("sending request", logging.F("method", req.Method), logging.F("id", req.ID.String()))

	httpResp, err := h.post(callCtx, body, true)
	if err != nil {
		return nil, h.callError(ctx, err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(httpResp); err != nil {
		return nil, err
	}

	br := bufio.NewReader(io.LimitReader(httpResp.Body, h.maxBodySize))
	if isEventStream(httpResp.Header.Get("Content-Type"), br) {
		resp, err := readSSEResponse(br, req.ID, h.logger, h.onNotification)
		if err != nil && callCtx.Err() != nil {
			return nil, h.callError(ctx, callCtx.Err())
		}
		return resp, err
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, h.callError(ctx, err)
	}
	return readJSONResponse(data, req.ID)
}

// SendNotification posts n and discards the reply body.
func (h *HTTP) SendNotification(ctx context.Context, n *protocol.Notification) error {
	if !h.IsConnected() {
		return ErrConnectionClosed
	}

	callCtx, done, ok := h.calls.begin(ctx)
	if !ok {
		return ErrConnectionClosed
	}
	defer done()

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, h.requestTimeout)
		defer cancel()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	httpResp, err := h.post(callCtx, body, false)
	if err != nil {
		return h.callError(ctx, err)
	}
	defer httpResp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, h.maxBodySize))

	return checkStatus(httpResp)
}

// IsConnected reports whether the transport is started and not closed.
func (h *HTTP) IsConnected() bool {
	return h.started.Load() && !h.closed.Load()
}

// Close refuses new calls and aborts in-flight ones with
// ErrConnectionClosed.
func (h *HTTP) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	if !h.calls.shutdown(DefaultShutdownTimeout) {
		h.logger.Warn("in-flight requests still running after close", logging.F("count", h.calls.count()))
	}
	h.logger.Info("http transport closed", logging.F("endpoint", h.endpoint))
	return nil
}

func (h *HTTP) post(ctx context.Context, body []byte, expectReply bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, v := range h.headers {
		req.Header[k] = v
	}
	if token := h.authorization(); token != "" {
		req.Header.Set("Authorization", token)
	}
	for k, v := range protocol.RequestMetaFromContext(ctx) {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if expectReply {
		req.Header.Set("Accept", "text/event-stream")
	}

	return h.client.Do(req)
}

// callError maps a failed round trip to the transport taxonomy. ctx is the
// caller's context.
func (h *HTTP) callError(ctx context.Context, err error) error {
	switch {
	case h.calls.aborted():
		return ErrConnectionClosed
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return &ConnectionError{Endpoint: h.endpoint, Err: err}
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(excerpt)),
	}
}

func bearer(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}
