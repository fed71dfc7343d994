// ABOUTME: RequireAuthenticated middleware for JWT Bearer auth.
// ABOUTME: Injects the verified auth.Identity into the request context.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/fixbay/workshop-ops/internal/auth"
)

// RequireAuthenticated returns a middleware that requires a valid Bearer
// token. A missing or malformed Authorization header is 401; a present but
// unverifiable token (bad signature, expired, unknown role) is 403 — the
// caller identified itself and the identity was rejected.
func (srv *Server) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			id, err := auth.ParseToken(raw, []byte(srv.cfg.JWTSecret))
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ctxIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
