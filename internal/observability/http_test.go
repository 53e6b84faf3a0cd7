package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tsqlgen/tsqlgen/internal/config"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
}

func TestLoggingMiddlewareDoesNotPanic(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/databases/{database}/schema", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/databases/Sales/schema", nil)
	MetricsMiddleware(mux).ServeHTTP(httptest.NewRecorder(), req)

	if got := routeLabel(req); got != "GET /v1/databases/{database}/schema" {
		t.Fatalf("routeLabel() = %q", got)
	}
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Fatalf("routeLabel() = %q", got)
	}
}

func TestNewLoggerAddsServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "tsqlgen-api"},
		Database:      config.DatabaseConfig{Host: "sql01", User: "reporter", Password: "hunter2"},
		AI:            config.AIConfig{Provider: "openai", APIKey: "sk-secret"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}, &buf)
	logger.Info("hello")
	logger.Debug("dropped")

	out := buf.String()
	if !strings.Contains(out, `"service":"tsqlgen-api"`) || !strings.Contains(out, `"profile":"test"`) {
		t.Fatalf("log output = %s", out)
	}
	if !strings.Contains(out, `"db":{"host":"sql01","auth":"SQL Authentication`) || !strings.Contains(out, `"ai_provider":"openai"`) {
		t.Fatalf("log output = %s", out)
	}
	if strings.Contains(out, "hunter2") || strings.Contains(out, "sk-secret") {
		t.Fatalf("credentials leaked into log output: %s", out)
	}
	if strings.Contains(out, "dropped") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
}

func TestRouteFamily(t *testing.T) {
	tests := map[string]string{
		"POST /v1/generate-sql":               familyGeneration,
		"POST /generate-sql":                  familyGeneration,
		"GET /v1/databases/{database}/schema": familySchema,
		"GET /v1/health":                      familyHealth,
		"GET /health":                         familyHealth,
		"GET /v1/ready":                       familyHealth,
		"GET /v1/metrics":                     familyMetrics,
		"GET /{$}":                            familyOther,
		"unmatched":                           familyOther,
		"/v1/generate-sql":                    familyGeneration,
	}
	for pattern, want := range tests {
		if got := routeFamily(pattern); got != want {
			t.Fatalf("routeFamily(%q) = %q, want %q", pattern, got, want)
		}
	}
}

func TestObserveDomainMetricsDoesNotPanic(t *testing.T) {
	ObserveSchemaInspection("ok", true, 10*time.Millisecond)
	ObserveGeneration("success")
	ObserveCompletion("openai-compatible", time.Second)
}
