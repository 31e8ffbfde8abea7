package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"schoolnotify/internal/handler/http/requestid"
)

// installRecorder sets an in-memory tracer provider for the duration of the test.
func installRecorder(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(sdktrace.NewTracerProvider()) })
	return exporter, tp
}

func serve(handler http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestMiddleware_CreatesSpan(t *testing.T) {
	exporter, tp := installRecorder(t)

	serve(Middleware(statusHandler(http.StatusOK)), http.MethodPost, "/webhooks/whatsapp", nil)
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "POST /webhooks/whatsapp" {
		t.Errorf("expected span name 'POST /webhooks/whatsapp', got '%s'", span.Name)
	}

	found := map[string]bool{}
	for _, attr := range span.Attributes {
		switch attr.Key {
		case "http.method":
			found["method"] = attr.Value.AsString() == http.MethodPost
		case "http.path":
			found["path"] = attr.Value.AsString() == "/webhooks/whatsapp"
		case "http.status_code":
			found["status"] = attr.Value.AsInt64() == 200
		}
	}
	for _, key := range []string{"method", "path", "status"} {
		if !found[key] {
			t.Errorf("http.%s attribute missing or wrong", key)
		}
	}
}

func TestMiddleware_AddsTraceIDToResponse(t *testing.T) {
	installRecorder(t)

	rr := serve(Middleware(statusHandler(http.StatusOK)), http.MethodGet, "/health", nil)

	traceID := rr.Header().Get("X-Trace-Id")
	if len(traceID) != 32 {
		t.Errorf("expected 32 hex trace id, got %q", traceID)
	}
}

func TestMiddleware_PropagatesTraceContext(t *testing.T) {
	exporter, tp := installRecorder(t)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	serve(Middleware(statusHandler(http.StatusOK)), http.MethodGet, "/webhooks/whatsapp", header)
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected propagated trace id, got %s", got)
	}
}

func TestMiddleware_ErrorAttribute(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantError bool
	}{
		{"5xx marks error", http.StatusBadGateway, true},
		{"4xx is not an error", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, tp := installRecorder(t)

			serve(Middleware(statusHandler(tt.status)), http.MethodGet, "/x", nil)
			_ = tp.ForceFlush(context.Background())

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			gotError := false
			for _, attr := range spans[0].Attributes {
				if attr.Key == "error" && attr.Value.AsBool() {
					gotError = true
				}
			}
			if gotError != tt.wantError {
				t.Errorf("error attribute = %v, want %v", gotError, tt.wantError)
			}
		})
	}
}

func TestGetTracer_FollowsGlobalProvider(t *testing.T) {
	exporter, tp := installRecorder(t)

	_, span := GetTracer().Start(context.Background(), "notify.Dispatch")
	span.End()
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].InstrumentationScope.Name != TracerName {
		t.Errorf("expected scope %q, got %q", TracerName, spans[0].InstrumentationScope.Name)
	}
}

func TestMiddleware_RecordsRequestID(t *testing.T) {
	exporter, tp := installRecorder(t)

	handler := requestid.Middleware(Middleware(statusHandler(http.StatusOK)))
	header := http.Header{}
	header.Set(requestid.RequestIDHeader, "trace-req-1")
	serve(handler, http.MethodPost, "/webhooks/whatsapp", header)
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	found := false
	for _, attr := range spans[0].Attributes {
		if attr.Key == "request_id" && attr.Value.AsString() == "trace-req-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("request_id attribute missing: %v", spans[0].Attributes)
	}
}
