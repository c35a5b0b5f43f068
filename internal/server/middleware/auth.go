// Package middleware contains HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"strings"

	"researchplane/internal/auth"
)

// Auth requires a matching bearer token on every request. An empty
// configured token disables the check (local development only).
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !auth.Equal(presented, token) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
