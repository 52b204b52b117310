package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency under route, which keeps the
// endpoint label bounded to registered patterns.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		next(rw, r)

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	}
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Barcode-Verified, Retry-After")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// rateLimitMiddleware enforces per-client rate limits and the daily quota.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil || r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		if err := s.rateLimiter.Allow(getClientIP(r)); err != nil {
			s.handleRateLimitError(w, err)
			return
		}

		next(w, r)
	}
}

// handleRateLimitError handles rate limit and quota errors.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rlErr *RateLimitError
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &rlErr):
		rateLimitHits.WithLabelValues(rlErr.Window).Inc()
		w.Header().Set("X-RateLimit-Window", rlErr.Window)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rlErr.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rlErr.RetryAfter.Seconds()))
		s.writeErrorResponse(w, rlErr.Error(), "rate_limit_exceeded", http.StatusTooManyRequests)
	case errors.As(err, &quotaErr):
		rateLimitHits.WithLabelValues("day").Inc()
		w.Header().Set("X-Quota-Limit", strconv.Itoa(quotaErr.Limit))
		w.Header().Set("X-Quota-Used", strconv.Itoa(quotaErr.Used))
		w.Header().Set("X-Quota-Resets", quotaErr.Resets.UTC().Format(http.TimeFormat))
		s.writeErrorResponse(w, quotaErr.Error(), "quota_exceeded", http.StatusTooManyRequests)
	default:
		s.writeErrorResponse(w, "Rate limiting check failed", "internal_error", http.StatusInternalServerError)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may hold a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
