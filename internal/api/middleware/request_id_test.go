package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trafficpulse/trafficpulse/internal/api/middleware"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetRequestID(r.Context())
		assert.True(t, strings.HasPrefix(id, "req_"))
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	assert.True(t, strings.HasPrefix(w.Header().Get("X-Request-Id"), "req_"))
}

func TestRequestID_IncomingHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{"well formed", "upstream-7f3a", true},
		{"contains space", "bad id", false},
		{"non ascii", "req_ü", false},
		{"too long", strings.Repeat("a", 129), false},
		{"max length", strings.Repeat("a", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = middleware.GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("X-Request-Id", tt.incoming)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if tt.reused {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.True(t, strings.HasPrefix(seen, "req_"), "got %q", seen)
			}
			assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
		})
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

		id := w.Header().Get("X-Request-Id")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
