package middle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mstgnz/paybox/infra/response"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		shouldPanic    bool
	}{
		{
			name: "Normal request - no panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("success"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Handler panics with string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			},
			expectedStatus: http.StatusInternalServerError,
			shouldPanic:    true,
		},
		{
			name: "Handler panics with error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var m map[string]int
				m["boom"]++
			},
			expectedStatus: http.StatusInternalServerError,
			shouldPanic:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrappedHandler := PanicRecoveryMiddleware()(tt.handler)

			req := httptest.NewRequest("GET", "/test", nil)
			req = req.WithContext(WithAccountID(req.Context(), 7))

			w := httptest.NewRecorder()
			wrappedHandler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if !tt.shouldPanic {
				return
			}

			if !strings.Contains(w.Header().Get("Content-Type"), "application/json") {
				t.Error("Expected JSON content type for panic response")
			}
			if w.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
				t.Error("Expected no-cache header for panic response")
			}

			var resp response.Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode panic response: %v", err)
			}
			if resp.Success {
				t.Error("Expected success=false for panic response")
			}
			if resp.Message != "Internal server error" {
				t.Errorf("Expected message 'Internal server error', got '%s'", resp.Message)
			}
			if resp.Error != "an unexpected error occurred" {
				t.Errorf("Expected generic error, got '%s'", resp.Error)
			}
		})
	}
}

func TestPanicRecoveryWithCustomHandler(t *testing.T) {
	customHandlerCalled := false
	var capturedPanic any

	middleware := PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, panicValue any) {
		customHandlerCalled = true
		capturedPanic = panicValue
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("custom panic handler"))
	})

	wrappedHandler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("custom test panic")
	}))

	w := httptest.NewRecorder()
	wrappedHandler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if !customHandlerCalled {
		t.Error("Custom panic handler was not called")
	}
	if capturedPanic != "custom test panic" {
		t.Errorf("Expected panic value 'custom test panic', got %v", capturedPanic)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}
}

func TestPanicRecovery_AbortHandlerPropagates(t *testing.T) {
	wrappedHandler := PanicRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if recovered := recover(); recovered != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to propagate, got %v", recovered)
		}
	}()

	wrappedHandler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
}
