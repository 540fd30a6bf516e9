package middle

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mstgnz/paybox/infra/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	jwtService, err := auth.NewJWTService("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := jwtService.GenerateToken(42)
	if err != nil {
		t.Fatal(err)
	}

	var seenAccount int64
	handler := AuthMiddleware(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccount, _ = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Valid token", "Bearer " + token, http.StatusOK},
		{"Invalid token", "Bearer wrong-token", http.StatusUnauthorized},
		{"Missing Authorization header", "", http.StatusUnauthorized},
		{"Invalid format", "Basic " + token, http.StatusUnauthorized},
		{"Empty Bearer token", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenAccount = 0
			req := httptest.NewRequest("GET", "/v1/account", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusOK && seenAccount != 42 {
				t.Errorf("Expected account 42 in context, got %d", seenAccount)
			}
		})
	}
}

func TestAccountIDFromContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := AccountIDFromContext(req.Context()); ok {
		t.Error("Expected no account id in a bare context")
	}
	if _, ok := AccountIDFromContext(WithAccountID(req.Context(), 0)); ok {
		t.Error("Expected zero account id to be rejected")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)

	clientIP := "192.168.1.1"
	if !rl.Allow(clientIP) {
		t.Error("First request should be allowed")
	}
	if !rl.Allow(clientIP) {
		t.Error("Second request should be allowed")
	}
	if rl.Allow(clientIP) {
		t.Error("Third request should be blocked")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("Another client should have its own bucket")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Allow("10.0.0.1")

	rl.Cleanup(time.Now())
	if len(rl.visitors) != 1 {
		t.Fatalf("Expected recent visitor to be kept, got %d", len(rl.visitors))
	}

	rl.Cleanup(time.Now().Add(time.Hour))
	if len(rl.visitors) != 0 {
		t.Errorf("Expected idle visitor to be removed, got %d", len(rl.visitors))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewRateLimiter(1))(okHandler())

	req1 := httptest.NewRequest("GET", "/test", nil)
	req1.RemoteAddr = "192.168.1.1:12345"
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req1)

	if rr1.Code != http.StatusOK {
		t.Errorf("First request should succeed, got status %d", rr1.Code)
	}

	req2 := httptest.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "192.168.1.1:12346"
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)

	if rr2.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be rate limited, got status %d", rr2.Code)
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "5.5.5.5:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 9.9.9.9 "}, "5.5.5.5:1", "9.9.9.9"},
		{"remote addr", nil, "5.5.5.5:1234", "5.5.5.5"},
		{"ipv6 localhost", nil, "[::1]:1234", "127.0.0.1"},
		{"no port", nil, "5.5.5.5", "5.5.5.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware()(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	expectedHeaders := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}

	for header, expectedValue := range expectedHeaders {
		if rr.Header().Get(header) != expectedValue {
			t.Errorf("Expected %s: %s, got: %s", header, expectedValue, rr.Header().Get(header))
		}
	}
}

func TestRequestValidationMiddleware(t *testing.T) {
	handler := RequestValidationMiddleware()(okHandler())

	tests := []struct {
		name           string
		method         string
		path           string
		contentType    string
		contentLength  int64
		expectedStatus int
	}{
		{"Valid JSON POST", "POST", "/v1/payments", "application/json", 100, http.StatusOK},
		{"Form POST to API", "POST", "/v1/payments", "application/x-www-form-urlencoded", 100, http.StatusUnsupportedMediaType},
		{"Text POST to API", "POST", "/v1/cards/charge", "text/plain", 100, http.StatusUnsupportedMediaType},
		{"GET without content type", "GET", "/v1/account", "", 0, http.StatusOK},
		{"POST body without content type", "POST", "/v1/cards/charge", "", 100, http.StatusBadRequest},
		{"Request too large", "POST", "/v1/payments", "application/json", 2 << 20, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("test body"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			req.ContentLength = tt.contentLength

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	handler := BodyLimitMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("POST", "/payment/result", strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected the handler to answer, got status %d", rr.Code)
	}
	if readErr == nil {
		t.Error("Expected reading an oversized body to fail")
	}
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var seen string
	handler := RequestLoggingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("Expected generated request id to be propagated, got %q / %q", seen, rr.Header().Get("X-Request-ID"))
	}
	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status %d, got %d", http.StatusAccepted, rr.Code)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "upstream-id" {
		t.Errorf("Expected incoming request id to be kept, got %q", seen)
	}
}
