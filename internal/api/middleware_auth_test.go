// ABOUTME: Tests for the Bearer-token authentication middleware.
// ABOUTME: Uses package api (not api_test) to access unexported Server fields.
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixbay/workshop-ops/internal/auth"
	"github.com/fixbay/workshop-ops/internal/config"
	"github.com/fixbay/workshop-ops/internal/rbac"
)

const testSecret = "test-secret-not-for-production"

func testServer() *Server {
	return &Server{ //nolint:exhaustruct // test: only cfg needed
		cfg: &config.Config{JWTSecret: testSecret}, //nolint:exhaustruct
	}
}

func echoIdentity(t *testing.T, got *auth.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		require.True(t, ok, "identity missing from context")
		*got = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthenticated_ValidToken(t *testing.T) {
	t.Parallel()
	srv := testServer()

	want := auth.Identity{
		UserID: uuid.New(),
		OrgID:  uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Role:   rbac.RoleManager,
	}
	token, err := auth.IssueToken([]byte(testSecret), want, time.Hour)
	require.NoError(t, err)

	var got auth.Identity
	handler := srv.RequireAuthenticated()(echoIdentity(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, got)
}

func TestRequireAuthenticated_MissingCredentialIs401(t *testing.T) {
	t.Parallel()
	srv := testServer()
	handler := srv.RequireAuthenticated()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler reached without credentials")
	}))

	for name, header := range map[string]string{
		"no header":    "",
		"wrong scheme": "Basic dXNlcjpwdw==",
		"empty bearer": "Bearer ",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireAuthenticated_BadTokenIs403(t *testing.T) {
	t.Parallel()
	srv := testServer()
	handler := srv.RequireAuthenticated()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler reached with a bad token")
	}))

	id := auth.Identity{UserID: uuid.New(), Role: rbac.RoleCounter}

	expired, err := auth.IssueToken([]byte(testSecret), id, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := auth.IssueToken([]byte("some-other-secret"), id, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.jwt",
		"expired":      expired,
		"wrong secret": wrongKey,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
	}
}
