package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		expectedStatus int
		shouldCallNext bool
	}{
		{"GET request with CORS headers", "*", http.MethodGet, http.StatusOK, true},
		{"POST request with specific origin", "https://example.com", http.MethodPost, http.StatusOK, true},
		{"OPTIONS request (preflight)", "*", http.MethodOptions, http.StatusNoContent, false},
		{"empty CORS origin", "", http.MethodGet, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}
			called := false
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/barcode", nil)
			w := httptest.NewRecorder()
			handler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.shouldCallNext, called)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
		})
	}
}

func TestServer_Instrument(t *testing.T) {
	server := &Server{}
	handler := server.instrument("/barcode", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	before := promtest.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/barcode", "422"))
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/barcode?text=x", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.InDelta(t, before+1, promtest.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/barcode", "422")), 0)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	server := newServer(Config{RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 2}}, &stubGenerator{})
	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/barcode", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		handler(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1").Code)

	w := call("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Window"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.ErrorType)

	// Other clients have their own budget.
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2").Code)
}

func TestServer_RateLimitMiddleware_Quota(t *testing.T) {
	server := newServer(Config{RateLimit: RateLimitConfig{Enabled: true, MaxRequestsPerDay: 1}}, &stubGenerator{})
	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/barcode", nil)
	handler(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Quota-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-Quota-Resets"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "quota_exceeded", resp.ErrorType)
}

func TestServer_RateLimitMiddleware_Disabled(t *testing.T) {
	server := newServer(Config{}, &stubGenerator{})
	assert.Nil(t, server.rateLimiter)
	assert.Zero(t, server.PruneRateLimits(0))

	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	for range 10 {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/barcode", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"remote addr", "192.0.2.1:5555", nil, "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"forwarded chain", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"forwarded single", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " 203.0.113.6 "}, "203.0.113.6"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
