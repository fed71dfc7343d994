// ABOUTME: End-to-end API tests: register/login, tenant isolation through the
// ABOUTME: HTTP surface, and RBAC denials, against a real Postgres container.
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixbay/workshop-ops/internal/api"
	"github.com/fixbay/workshop-ops/internal/config"
	"github.com/fixbay/workshop-ops/internal/testutil"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.NewTestDB(t)
	cfg := &config.Config{ //nolint:exhaustruct
		JWTSecret:           "e2e-test-secret",
		TokenTTL:            time.Hour,
		Argon2MaxConcurrent: 2,
		RateLimitEvictTTL:   time.Minute,
	}
	// The app-role store enforces RLS, same as production.
	ts := httptest.NewServer(api.NewServer(db.AppStore, cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func registerWorkshop(t *testing.T, base, workshop, email string) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, base+"/api/v1/auth/register", "", map[string]string{
		"workshop_name": workshop,
		"name":          "Owner of " + workshop,
		"email":         email,
		"password":      "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, status, "register %s: %v", workshop, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createStaff(t *testing.T, base, ownerToken, name, email, role string) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, base+"/api/v1/users", ownerToken, map[string]string{
		"name":     name,
		"email":    email,
		"password": "correct horse battery",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, "create staff %s: %v", email, body)

	status, body = doJSON(t, http.MethodPost, base+"/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, status, "login %s: %v", email, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAPI_RegisterLoginAndTenantIsolation(t *testing.T) {
	t.Parallel()
	ts := newTestAPI(t)

	ownerA := registerWorkshop(t, ts.URL, "Workshop A", "owner-a@example.com")
	ownerB := registerWorkshop(t, ts.URL, "Workshop B", "owner-b@example.com")

	// Owners are platform admins; tenancy is exercised through floor staff.
	counterA := createStaff(t, ts.URL, ownerA, "Counter A", "counter-a@example.com", "Counter")
	counterB := createStaff(t, ts.URL, ownerB, "Counter B", "counter-b@example.com", "Counter")

	status, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", counterA, map[string]any{
		"account_number": "ACME-001",
		"account_type":   "Business",
		"name":           "Acme Rentals",
		"company_name":   "Acme Rentals Ltd",
		"address":        "1 High St",
		"postcode":       "AB1 2CD",
		"email":          "ops@acme.example.com",
		"phone":          "01234 567890",
	})
	require.Equal(t, http.StatusCreated, status, "%v", created)

	// Same-org lookup works by account number.
	status, got := doJSON(t, http.MethodGet, ts.URL+"/api/v1/customers/ACME-001", counterA, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme Rentals", got["name"])

	// Cross-org lookup is indistinguishable from a missing record.
	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/customers/ACME-001", counterB, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/customers/NO-SUCH-ACCOUNT", counterB, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Duplicate account number within the org is a conflict.
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", counterA, map[string]any{
		"account_number": "ACME-001",
		"account_type":   "Business",
		"name":           "Acme Again",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_RBACDenials(t *testing.T) {
	t.Parallel()
	ts := newTestAPI(t)

	owner := registerWorkshop(t, ts.URL, "RBAC Workshop", "rbac-owner@example.com")
	mechanic := createStaff(t, ts.URL, owner, "Mech", "rbac-mech@example.com", "Mechanic")
	counter := createStaff(t, ts.URL, owner, "Count", "rbac-counter@example.com", "Counter")

	// Mechanics never touch customer records.
	status, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/customers?q=x", mechanic, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Counters cannot create staff.
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/users", counter, map[string]string{
		"name": "x", "email": "x@example.com", "password": "longenough", "role": "Counter",
	})
	assert.Equal(t, http.StatusForbidden, status)

	// But mechanics may list their jobs.
	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/jobs", mechanic, nil)
	assert.Equal(t, http.StatusOK, status)

	// No credential at all.
	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_JobFlow(t *testing.T) {
	t.Parallel()
	ts := newTestAPI(t)

	owner := registerWorkshop(t, ts.URL, "Jobs Workshop", "jobs-owner@example.com")
	manager := createStaff(t, ts.URL, owner, "Mgr", "jobs-mgr@example.com", "Workshop Manager")
	mechanic := createStaff(t, ts.URL, owner, "Mech", "jobs-mech@example.com", "Mechanic")

	status, customer := doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", manager, map[string]any{
		"account_number": "JOB-CUST-1",
		"account_type":   "Personal",
		"name":           "Laura",
	})
	require.Equal(t, http.StatusCreated, status, "%v", customer)

	status, job := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs", manager, map[string]any{
		"customer_id":   customer["id"],
		"machine_make":  "Husqvarna",
		"machine_model": "545",
		"machine_type":  "Chainsaw",
		"service_types": []string{"Repair", "Service"},
	})
	require.Equal(t, http.StatusCreated, status, "%v", job)
	code, _ := job["code"].(string)
	require.Len(t, code, 4)
	assert.Equal(t, "Intake", job["status"])

	// Unassigned mechanic cannot see the job.
	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/jobs/"+code, mechanic, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Manager assigns; mechanic can now see and progress it.
	status, meBody := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/me", mechanic, nil)
	require.Equal(t, http.StatusOK, status)
	mechID, _ := meBody["user_id"].(string)

	status, assigned := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/jobs/%s/assign", ts.URL, code), manager,
		map[string]string{"mechanic_id": mechID})
	require.Equal(t, http.StatusOK, status, "%v", assigned)

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/jobs/"+code, mechanic, nil)
	assert.Equal(t, http.StatusOK, status)

	status, moved := doJSON(t, http.MethodPatch,
		fmt.Sprintf("%s/api/v1/jobs/%s/status", ts.URL, code), mechanic,
		map[string]string{"status": "Diagnosis"})
	require.Equal(t, http.StatusOK, status, "%v", moved)
	assert.Equal(t, "Diagnosis", moved["status"])

	history, _ := moved["history"].([]any)
	assert.GreaterOrEqual(t, len(history), 3, "creation, assignment, and status entries")

	// Bad status string.
	status, _ = doJSON(t, http.MethodPatch,
		fmt.Sprintf("%s/api/v1/jobs/%s/status", ts.URL, code), mechanic,
		map[string]string{"status": "Teleported"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_Healthz(t *testing.T) {
	t.Parallel()
	ts := newTestAPI(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}
