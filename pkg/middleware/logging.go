package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"trainerbook/pkg/logger"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"

	maxRequestIDLen = 64
)

// statusRecorder remembers the first status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
		sr.ResponseWriter.WriteHeader(code)
	}
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

func incomingRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= maxRequestIDLen {
		return id
	}
	return uuid.NewString()
}

// RequestLogging tags each request with an id, taken from X-Request-ID when
// the caller supplies one, and logs its start and completion.
func RequestLogging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			id := incomingRequestID(r)
			w.Header().Set(RequestIDHeader, id)

			reqLog := log.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			reqLog.Debug("HTTP request started", "remote_addr", r.RemoteAddr)

			rec := &statusRecorder{ResponseWriter: w}
			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			ctx = logger.WithContext(ctx, reqLog)
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLog.Info("HTTP request completed",
				"status", rec.code(),
				"duration_ms", time.Since(began).Milliseconds(),
			)
		})
	}
}
