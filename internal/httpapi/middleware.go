package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/olegrjumin/cookieguard/internal/logging"
	"github.com/olegrjumin/cookieguard/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and calls the underlying WriteHeader
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher to support SSE streaming
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// loggingMiddleware logs each HTTP request with method, path, status, and
// duration, and counts it when a collector is given
func loggingMiddleware(logger *logging.Logger, m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap the ResponseWriter to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK, // Default status if WriteHeader isn't called
			}

			next.ServeHTTP(wrapped, r)

			if m != nil {
				m.HTTPRequest(r.Method, strconv.Itoa(wrapped.status))
			}
			logger.Info("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
