package worker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/kpis", nil)
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, req)

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Content-Security-Policy", "default-src 'none'"},
	}
	for _, tt := range tests {
		if got := rr.Header().Get(tt.header); got != tt.expected {
			t.Errorf("SecurityHeaders() %s = %q, want %q", tt.header, got, tt.expected)
		}
	}
}

func TestSecurityHeaders_CORS(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		expectCORS bool
	}{
		{"console origin allowed", "http://localhost:37781", true},
		{"vite dev server allowed", "http://127.0.0.1:5173", true},
		{"localhost without port allowed", "http://localhost", true},
		{"external origin blocked", "http://evil.com", false},
		{"suffix bypass blocked", "http://evil-localhost.com", false},
		{"subdomain bypass blocked", "http://localhost.evil.com", false},
		{"https variant blocked", "https://localhost:37781", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/matrices", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			SecurityHeaders(okHandler()).ServeHTTP(rr, req)

			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.expectCORS && got != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.expectCORS && got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
			}
		})
	}
}

func TestSecurityHeaders_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/assets/SKU-ALFA-001/links", nil)
	req.Header.Set("Origin", "http://localhost:37781")
	rr := httptest.NewRecorder()

	called := false
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if called {
		t.Error("preflight reached the handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Error("PATCH missing from allowed methods")
	}
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(16)(okHandler())

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"small body", `{"a":1}`, http.StatusOK},
		{"oversized body", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/nodes/link", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("status = %d, want %d", rr.Code, tt.expected)
			}
		})
	}
}

func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		path     string
		header   string
		expected int
	}{
		{"disabled", "", "/api/kpis", "", http.StatusOK},
		{"missing header", "tok", "/api/kpis", "", http.StatusUnauthorized},
		{"wrong token", "tok", "/api/kpis", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "tok", "/api/kpis", "Basic tok", http.StatusUnauthorized},
		{"valid token", "tok", "/api/kpis", "Bearer tok", http.StatusOK},
		{"health exempt", "tok", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewTokenAuth(tt.token)
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			auth.Middleware(okHandler()).ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("status = %d, want %d", rr.Code, tt.expected)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated request id %q not propagated (header %q)", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "client-id" {
		t.Errorf("request id = %q, want client-id", seen)
	}
}

func TestRequireJSONContentType(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		expected    int
	}{
		{"GET ignores content type", "GET", "text/plain", http.StatusOK},
		{"POST json", "POST", "application/json", http.StatusOK},
		{"POST json with charset", "POST", "application/json; charset=utf-8", http.StatusOK},
		{"POST without body type", "POST", "", http.StatusOK},
		{"PATCH form rejected", "PATCH", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"PUT text rejected", "PUT", "text/plain", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/assets", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			RequireJSONContentType(okHandler()).ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("status = %d, want %d", rr.Code, tt.expected)
			}
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	RequestLogger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestBulkOperationLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewBulkOperationLimiter(time.Minute)
	limiter.now = func() time.Time { return now }

	if !limiter.CanExecute() {
		t.Fatal("first operation should be allowed")
	}
	if limiter.CanExecute() {
		t.Error("second operation inside cooldown should be refused")
	}
	now = now.Add(20 * time.Second)
	if got := limiter.CooldownRemaining(); got != 40*time.Second {
		t.Errorf("CooldownRemaining() = %v, want 40s", got)
	}
	now = now.Add(time.Minute)
	if !limiter.CanExecute() {
		t.Error("operation after cooldown should be allowed")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should fit the burst", i)
		}
	}
	if rl.Allow() {
		t.Error("request beyond burst should be refused")
	}
}

func TestWriteRateLimit(t *testing.T) {
	limiter := NewPerClientRateLimiter(0.001, 1)
	handler := WriteRateLimit(limiter)(okHandler())

	send := func(method, addr string) int {
		req := httptest.NewRequest(method, "/api/nodes/link", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if got := send("POST", "10.0.0.1:5000"); got != http.StatusOK {
		t.Errorf("first write = %d, want 200", got)
	}
	if got := send("POST", "10.0.0.1:5001"); got != http.StatusTooManyRequests {
		t.Errorf("second write = %d, want 429", got)
	}
	if got := send("GET", "10.0.0.1:5002"); got != http.StatusOK {
		t.Errorf("read = %d, want 200", got)
	}
	if got := send("POST", "10.0.0.2:5000"); got != http.StatusOK {
		t.Errorf("other client = %d, want 200", got)
	}
	if rejected := limiter.Stats()["rejected"]; rejected != int64(1) {
		t.Errorf("rejected = %v, want 1", rejected)
	}
}
