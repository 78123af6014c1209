package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestOTelMiddleware(t *testing.T) {
	t.Run("creates client span for request", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok")
		})

		req := &protocol.Request{ID: protocol.IntID(1), Method: "tools/list"}
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}

		span := spans[0]
		if span.Name != "mcp.tools/list" {
			t.Errorf("expected span name 'mcp.tools/list', got %q", span.Name)
		}
		if span.SpanKind != trace.SpanKindClient {
			t.Errorf("expected client span, got %v", span.SpanKind)
		}
		if span.Status.Code != codes.Ok {
			t.Errorf("expected Ok status, got %v", span.Status.Code)
		}

		attrs := make(map[attribute.Key]attribute.Value)
		for _, a := range span.Attributes {
			attrs[a.Key] = a.Value
		}
		if got := attrs["mcp.request.id"].AsString(); got != "1" {
			t.Errorf("mcp.request.id = %q, want 1", got)
		}
		if got := attrs["service.name"].AsString(); got != "mcp-client" {
			t.Errorf("service.name = %q, want mcp-client", got)
		}
	})

	t.Run("records error on failure", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		expectedErr := errors.New("transport failed")
		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, expectedErr
		})

		_, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/call"})
		if !errors.Is(err, expectedErr) {
			t.Fatalf("expected %v, got %v", expectedErr, err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].Status.Code != codes.Error {
			t.Errorf("expected Error status, got %v", spans[0].Status.Code)
		}
		if len(spans[0].Events) == 0 {
			t.Error("expected error event on span")
		}
	})

	t.Run("records server error code", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.NewMethodNotFound("nodes/reboot")), nil
		})

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "nodes/reboot"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		span := exporter.GetSpans()[0]
		if span.Status.Code != codes.Error {
			t.Errorf("expected Error status, got %v", span.Status.Code)
		}
		var found bool
		for _, a := range span.Attributes {
			if a.Key == "mcp.error_code" && a.Value.AsInt64() == int64(protocol.CodeMethodNotFound) {
				found = true
			}
		}
		if !found {
			t.Error("expected mcp.error_code attribute")
		}
	})

	t.Run("skips configured methods", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		handler := OTel(WithTracerProvider(tp), WithOTelSkipMethods("ping"))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, struct{}{})
		})

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "ping"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(exporter.GetSpans()); n != 0 {
			t.Errorf("expected no spans, got %d", n)
		}
	})

	t.Run("injects trace context into request meta", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		var traceparent string
		handler := OTel(
			WithTracerProvider(tp),
			WithPropagator(propagation.TraceContext{}),
		)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			traceparent = protocol.GetRequestMeta(ctx, "traceparent")
			return protocol.NewResponse(req.ID, "ok")
		})

		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/list"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		span := exporter.GetSpans()[0]
		if !strings.Contains(traceparent, span.SpanContext.TraceID().String()) {
			t.Errorf("traceparent = %q, want trace id %s", traceparent, span.SpanContext.TraceID())
		}
	})

	t.Run("uses custom service name", func(t *testing.T) {
		exporter, tp := newTestTracer(t)

		handler := OTel(WithTracerProvider(tp), WithOTelServiceName("cluster-agent"))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok")
		})
		if _, err := handler(context.Background(), &protocol.Request{ID: protocol.IntID(1), Method: "tools/list"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, a := range exporter.GetSpans()[0].Attributes {
			if a.Key == "service.name" && a.Value.AsString() != "cluster-agent" {
				t.Errorf("service.name = %q, want cluster-agent", a.Value.AsString())
			}
		}
	})
}

func TestOTelMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	calls := 0
	handler := OTel(WithMeterProvider(mp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("broken pipe")
		}
		return protocol.NewResponse(req.ID, "ok")
	})

	for i := int64(1); i <= 2; i++ {
		_, _ = handler(context.Background(), &protocol.Request{ID: protocol.IntID(i), Method: "tools/call"})
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	sums := make(map[string]int64)
	seen := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = true
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	if sums["mcp.client.requests"] != 2 {
		t.Errorf("mcp.client.requests = %d, want 2", sums["mcp.client.requests"])
	}
	if sums["mcp.client.errors"] != 1 {
		t.Errorf("mcp.client.errors = %d, want 1", sums["mcp.client.errors"])
	}
	if !seen["mcp.client.request.duration"] {
		t.Error("expected mcp.client.request.duration histogram")
	}
}
