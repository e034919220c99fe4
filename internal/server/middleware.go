package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// requestID returns the ID assigned by route.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// route assigns a request ID, applies CORS and records metrics under the
// route pattern.
func (s *Server) route(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())
		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"route", pattern,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// rateLimitMiddleware enforces rate limits and quotas per client IP.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		var size int64
		if r.ContentLength > 0 {
			size = r.ContentLength
		}
		if err := s.rateLimiter.Allow(getClientIP(r), size); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

// handleRateLimitError writes a 429 with headers describing the limit.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var response map[string]any
	var rl *RateLimitError
	var quota *QuotaExceededError
	switch {
	case errors.As(err, &rl):
		rateLimitHits.WithLabelValues(rl.Window).Inc()
		w.Header().Set("X-RateLimit-Type", rl.Window)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.RetryAfter.Seconds()))
		response = map[string]any{"error": "rate_limit_exceeded", "type": rl.Window, "limit": rl.Limit, "retry_after": rl.RetryAfter.Seconds()}
	case errors.As(err, &quota):
		rateLimitHits.WithLabelValues(quota.Quota).Inc()
		w.Header().Set("X-Quota-Type", quota.Quota)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(quota.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(quota.Used, 10))
		w.Header().Set("X-Quota-Resets", quota.Resets.Format(http.TimeFormat))
		response = map[string]any{"error": "quota_exceeded", "type": quota.Quota, "limit": quota.Limit, "used": quota.Used, "resets": quota.Resets.Format(time.RFC3339)}
	default:
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_error"})
		return
	}
	response["message"] = err.Error()
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("failed to encode rate limit response", "error", err)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
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
