package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "trainerbook/pkg/errors"
	httputil "trainerbook/pkg/http"
)

// deadlineWriter guards the real writer so that either the handler or the
// timeout path owns the response, never both.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}

// expire reports whether the timeout path may still write the response.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.started
}

// RequestTimeout bounds each request by d. A handler that overruns gets a
// cancelled context and its later writes are discarded.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			finished := make(chan any, 1)

			go func() {
				var p any
				defer func() {
					if rec := recover(); rec != nil {
						p = rec
					}
					finished <- p
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case p := <-finished:
				if p != nil {
					// Recovery sits on this goroutine.
					panic(p)
				}
			case <-ctx.Done():
				if dw.expire() {
					_ = httputil.WriteError(w, apperrors.Timeout("Request timed out"))
				}
			}
		})
	}
}
