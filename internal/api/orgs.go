// ABOUTME: HTTP handler for tenant provisioning, reachable only by platform admins.
package api

import (
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/store"
)

// createOrgHandler handles POST /api/v1/orgs. The RBAC middleware already
// restricts this to platform-admin roles; the organisations insert policy is
// the database-side backstop.
func (srv *Server) createOrgHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	var created *store.Organisation
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		created, txErr = store.CreateOrganisation(r.Context(), tx, req.Name)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}{created.ID.String(), created.Name})
}
