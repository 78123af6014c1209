package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/testutil"
)

func TestChain(t *testing.T) {
	t.Run("empty chain returns handler unchanged", func(t *testing.T) {
		called := false
		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			called = true
			return protocol.NewResponse(req.ID, "ok")
		})

		chained := Chain()(handler)
		_, err := chained(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "test"})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Error("handler was not called")
		}
	})

	t.Run("single middleware wraps handler", func(t *testing.T) {
		order := []string{}

		middleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				order = append(order, "before")
				resp, err := next(ctx, req)
				order = append(order, "after")
				return resp, err
			}
		}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			order = append(order, "handler")
			return protocol.NewResponse(req.ID, "ok")
		})

		chained := Chain(middleware)(handler)
		_, _ = chained(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "test"})

		expected := []string{"before", "handler", "after"}
		if len(order) != len(expected) {
			t.Fatalf("order = %v, want %v", order, expected)
		}
		for i, v := range expected {
			if order[i] != v {
				t.Errorf("order[%d] = %q, want %q", i, order[i], v)
			}
		}
	})

	t.Run("multiple middleware execute in order", func(t *testing.T) {
		order := []string{}

		middleware1 := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				order = append(order, "m1-before")
				resp, err := next(ctx, req)
				order = append(order, "m1-after")
				return resp, err
			}
		}

		middleware2 := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				order = append(order, "m2-before")
				resp, err := next(ctx, req)
				order = append(order, "m2-after")
				return resp, err
			}
		}

		middleware3 := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				order = append(order, "m3-before")
				resp, err := next(ctx, req)
				order = append(order, "m3-after")
				return resp, err
			}
		}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			order = append(order, "handler")
			return protocol.NewResponse(req.ID, "ok")
		})

		chained := Chain(middleware1, middleware2, middleware3)(handler)
		_, _ = chained(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "test"})

		expected := []string{"m1-before", "m2-before", "m3-before", "handler", "m3-after", "m2-after", "m1-after"}
		if len(order) != len(expected) {
			t.Fatalf("order = %v, want %v", order, expected)
		}
		for i, v := range expected {
			if order[i] != v {
				t.Errorf("order[%d] = %q, want %q", i, order[i], v)
			}
		}
	})

	t.Run("middleware can short-circuit chain", func(t *testing.T) {
		handlerCalled := false

		blockingMiddleware := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, protocol.NewUnauthorized("blocked")
			}
		}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			handlerCalled = true
			return protocol.NewResponse(req.ID, "ok")
		})

		chained := Chain(blockingMiddleware)(handler)
		_, err := chained(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "test"})

		if err == nil {
			t.Error("expected error from blocking middleware")
		}
		if handlerCalled {
			t.Error("handler should not have been called")
		}
	})
}

func TestDefaultStack(t *testing.T) {
	t.Run("recovers from panics", func(t *testing.T) {
		handler := Chain(DefaultStack(nil)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			panic("boom")
		})

		_, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/call"})
		var panicErr *PanicError
		if !errors.As(err, &panicErr) {
			t.Fatalf("expected *PanicError, got %v", err)
		}
	})

	t.Run("logs with correlation id", func(t *testing.T) {
		logger := testutil.NewLogger()
		handler := Chain(DefaultStack(logger)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok")
		})

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/list"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, ok := logger.Find("info", "request completed")
		if !ok {
			t.Fatalf("expected info entry, got %+v", logger.Entries())
		}
		if _, ok := entry.Field("request_id"); !ok {
			t.Error("expected request_id field")
		}
	})

	t.Run("with timeout", func(t *testing.T) {
		handler := Chain(DefaultStackWithTimeout(nil, 10*time.Millisecond)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		_, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/call"})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
