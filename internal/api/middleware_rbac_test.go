// ABOUTME: Tests for the RequirePermission RBAC middleware.
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fixbay/workshop-ops/internal/auth"
	"github.com/fixbay/workshop-ops/internal/rbac"
)

func requestAs(role rbac.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id := auth.Identity{UserID: uuid.New(), Role: role}
	return req.WithContext(context.WithValue(req.Context(), ctxIdentity, id))
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()
	srv := testServer()

	cases := []struct {
		name   string
		role   rbac.Role
		action rbac.Action
		want   int
	}{
		{"counter creates customer", rbac.RoleCounter, rbac.ActionCustomerCreate, http.StatusOK},
		{"counter cannot move job status", rbac.RoleCounter, rbac.ActionJobUpdateStatus, http.StatusForbidden},
		{"mechanic reads jobs", rbac.RoleMechanic, rbac.ActionJobRead, http.StatusOK},
		{"mechanic cannot read customers", rbac.RoleMechanic, rbac.ActionCustomerRead, http.StatusForbidden},
		{"manager assigns jobs", rbac.RoleManager, rbac.ActionJobAssign, http.StatusOK},
		{"owner cannot assign jobs", rbac.RoleOwner, rbac.ActionJobAssign, http.StatusForbidden},
		{"admin deletes staff", rbac.RoleAdmin, rbac.ActionStaffDelete, http.StatusOK},
		{"manager cannot delete staff", rbac.RoleManager, rbac.ActionStaffDelete, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			handler := srv.RequirePermission(tc.action)(http.HandlerFunc(
				func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestAs(tc.role))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequirePermission_NoIdentityFailsClosed(t *testing.T) {
	t.Parallel()
	srv := testServer()
	handler := srv.RequirePermission(rbac.ActionCustomerRead)(http.HandlerFunc(
		func(http.ResponseWriter, *http.Request) { t.Error("handler reached without identity") }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
