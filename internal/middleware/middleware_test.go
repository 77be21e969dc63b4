package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"habitrefund/internal/tracing"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 12, 21, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected first two requests allowed")
	}
	if rl.Allow("a") {
		t.Error("Expected third request rejected")
	}
	if !rl.Allow("b") {
		t.Error("Clients must not share buckets")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("Expected bucket refilled after window")
	}

	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(RateLimitMiddleware(rl))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("Expected limit header 1, got %q", w.Header().Get("X-RateLimit-Limit"))
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
}

func TestGetClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote host", nil, "192.0.2.9:5555", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientKey(req); got != tt.want {
				t.Errorf("GetClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	tracer := tracing.New(tp.Tracer("test"))

	r := chi.NewRouter()
	r.Use(TracingMiddleware(tracer))
	r.Get("/api/screens/challenge/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/screens/challenge/bed-0700", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "GET /api/screens/challenge/{id}" {
		t.Errorf("Unexpected span name %q", spans[0].Name())
	}
	if spans[0].Status().Code.String() != "Error" {
		t.Errorf("Expected error status for 503, got %v", spans[0].Status().Code)
	}
}
