// ABOUTME: HTTP handlers for staff accounts: create, list, delete.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/auth"
	"github.com/fixbay/workshop-ops/internal/rbac"
	"github.com/fixbay/workshop-ops/internal/store"
)

type userBody struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserBody(u store.User) userBody {
	b := userBody{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.OrgID.Valid {
		b.OrgID = u.OrgID.UUID.String()
	}
	return b
}

// createStaffHandler handles POST /api/v1/users. Accounts at a platform-admin
// role can only be created by callers who themselves hold one — a Workshop
// Manager cannot mint an Owner.
func (srv *Server) createStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, r, http.StatusBadRequest, "name and email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	if rbac.IsPlatformAdmin(role) && !id.IsPlatformAdmin() {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	if !id.OrgID.Valid && !rbac.IsPlatformAdmin(role) {
		// Platform staff without an org can only create other platform staff;
		// tenant roles need a tenant to belong to.
		writeError(w, r, http.StatusBadRequest, "no organisation scope")
		return
	}

	if !srv.acquireArgon2() {
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, "server busy, please retry")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(r.Context(), "create staff: hash password", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	var created *store.User
	err = srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		created, txErr = store.CreateUser(r.Context(), tx, store.UserParams{
			OrgID:        id.OrgID,
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         role.String(),
		})
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toUserBody(*created))
}

// listStaffHandler handles GET /api/v1/users.
func (srv *Server) listStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var users []store.User
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		users, txErr = store.ListUsers(r.Context(), tx)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}

	result := make([]userBody, 0, len(users))
	for _, u := range users {
		result = append(result, toUserBody(u))
	}
	writeJSON(w, r, http.StatusOK, result)
}

// deleteStaffHandler handles DELETE /api/v1/users/{id}. An id that does not
// exist and one hidden by the row policies produce the same 404.
func (srv *Server) deleteStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "id must be a UUID")
		return
	}
	if targetID == id.UserID {
		writeError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	err = srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		return store.DeleteUser(r.Context(), tx, targetID)
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
