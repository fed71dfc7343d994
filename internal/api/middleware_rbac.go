// ABOUTME: RequirePermission middleware that checks the static role policy table.
package api

import (
	"net/http"

	"github.com/fixbay/workshop-ops/internal/rbac"
)

// RequirePermission returns a middleware that rejects with 403 any caller
// whose role is not permitted action. Must run after RequireAuthenticated.
func (srv *Server) RequirePermission(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFrom(r.Context())
			if !ok {
				// RequireAuthenticated did not run; fail closed.
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !rbac.Can(id.Role, action) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
