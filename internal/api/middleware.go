package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yourusername/shin/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument assigns a request ID, then logs and records every request.
func (s *Server) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(withRequestID(r.Context(), requestID)))

		elapsed := time.Since(start)
		metrics.RecordAPIRequest(path, rec.status, elapsed.Seconds())
		s.access.LogRequest(requestID, r.Method, path, rec.status, float64(elapsed.Microseconds())/1000, r.RemoteAddr)
	})
}

// rateLimit rejects requests beyond the token bucket with 429. A nil
// limiter disables limiting.
func (s *Server) rateLimit(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			requestID := requestIDFrom(r.Context())
			s.access.LogRateLimited(requestID, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, requestID, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// allowMethod rejects other methods with 405.
func allowMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, requestIDFrom(r.Context()), "method not allowed")
			return
		}
		next(w, r)
	}
}
