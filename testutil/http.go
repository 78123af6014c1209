package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// HTTPServer exposes a Server at the /mcp path of an httptest server.
type HTTPServer struct {
	*httptest.Server

	// Endpoint is the full URL of the MCP endpoint.
	Endpoint string

	srv *Server
	sse bool

	mu      sync.Mutex
	headers []http.Header
}

// HTTPOption configures an HTTPServer.
type HTTPOption func(*HTTPServer)

// WithSSE makes the server answer requests with an event stream. Each
// stream carries a log notification, the response, and a "[DONE]" marker.
func WithSSE() HTTPOption {
	return func(h *HTTPServer) {
		h.sse = true
	}
}

// NewHTTPServer starts an HTTP server for s. It is closed when the test
// ends.
func NewHTTPServer(t testing.TB, s *Server, opts ...HTTPOption) *HTTPServer {
	t.Helper()

	h, handler := newHTTPHandler(s, opts)
	h.Server = httptest.NewServer(handler)
	h.Endpoint = h.URL + "/mcp"
	t.Cleanup(h.Close)

	return h
}

// Handler returns an http.Handler serving s at /mcp, for use outside
// tests or with a custom listener.
func Handler(s *Server, opts ...HTTPOption) http.Handler {
	_, handler := newHTTPHandler(s, opts)
	return handler
}

func newHTTPHandler(s *Server, opts []HTTPOption) (*HTTPServer, http.Handler) {
	h := &HTTPServer{srv: s}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", h.handle)
	return h, mux
}

// Headers returns the headers of every request received so far.
func (h *HTTPServer) Headers() []http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]http.Header(nil), h.headers...)
}

func (h *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	h.headers = append(h.headers, r.Header.Clone())
	h.mu.Unlock()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := protocol.Parse(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(protocol.NewErrorResponse(protocol.ID{}, protocol.NewParseError(err.Error())))
		return
	}

	resp := h.srv.HandleMessage(r.Context(), msg)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !h.sse {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	note, _ := protocol.NewNotification(protocol.MethodLogMessage, map[string]any{
		"level": "info",
		"data":  "handling " + resp.ID.String(),
	})
	noteData, _ := json.Marshal(note)
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", noteData)
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}
