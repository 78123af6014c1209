package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/testutil"
)

func TestLogging(t *testing.T) {
	t.Run("logs successful request", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok")
		})

		req := &protocol.Request{ID: protocol.IntID(7), Method: "tools/list"}
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, ok := logger.Find("info", "request completed")
		if !ok {
			t.Fatalf("expected info entry, got %+v", logger.Entries())
		}
		if v, _ := entry.Field("method"); v != "tools/list" {
			t.Errorf("method = %v, want tools/list", v)
		}
		if v, _ := entry.Field("id"); v != "7" {
			t.Errorf("id = %v, want 7", v)
		}
		if _, ok := entry.Field("duration"); !ok {
			t.Error("expected duration field")
		}
	})

	t.Run("logs failed call", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, errors.New("connection reset")
		})

		_, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/call"})
		if err == nil {
			t.Fatal("expected error")
		}

		entry, ok := logger.Find("error", "request failed")
		if !ok {
			t.Fatalf("expected error entry, got %+v", logger.Entries())
		}
		if v, _ := entry.Field("error"); v != "connection reset" {
			t.Errorf("error = %v, want connection reset", v)
		}
	})

	t.Run("logs server error response", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams("missing node")), nil
		})

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/call"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, ok := logger.Find("warn", "request returned error")
		if !ok {
			t.Fatalf("expected warn entry, got %+v", logger.Entries())
		}
		if v, _ := entry.Field("code"); v != protocol.CodeInvalidParams {
			t.Errorf("code = %v, want %d", v, protocol.CodeInvalidParams)
		}
	})

	t.Run("includes correlation id", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Chain(RequestIDWithGenerator(func() string { return "corr-1" }), Logging(logger))(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return protocol.NewResponse(req.ID, "ok")
			},
		)

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "ping"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, _ := logger.Find("info", "request completed")
		if v, _ := entry.Field("request_id"); v != "corr-1" {
			t.Errorf("request_id = %v, want corr-1", v)
		}
	})

	t.Run("logs notifications at debug", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, nil
		})

		if _, err := handler(context.Background(), &protocol.Request{Method: protocol.MethodInitialized}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !logger.Has("debug", "notification sent") {
			t.Errorf("expected debug entry, got %+v", logger.Entries())
		}
		if logger.Has("info", "request completed") {
			t.Error("notification logged as a completed request")
		}
	})

	t.Run("nil logger is a no-op", func(t *testing.T) {
		handler := Logging(nil)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok")
		})
		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "ping"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
