package middleware

import (
	"net/http"

	"researchplane/internal/logger"

	"github.com/google/uuid"
)

// RequestID attaches a correlation ID to every request. An incoming
// X-Request-ID header is honored so callers can correlate across systems.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
