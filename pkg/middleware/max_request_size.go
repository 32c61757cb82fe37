package middleware

import (
	"net/http"

	apperrors "trainerbook/pkg/errors"
	httputil "trainerbook/pkg/http"
)

// MaxRequestSize rejects bodies that declare a length over the limit and caps
// the rest so decoders fail once they read past it.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.New(apperrors.CodeTooLarge, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
