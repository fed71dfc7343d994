// ABOUTME: HTTP handlers for authentication: register, login, me.
// ABOUTME: Register and login live under /api/v1/auth/... and are rate-limited per IP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/auth"
	"github.com/fixbay/workshop-ops/internal/rbac"
	"github.com/fixbay/workshop-ops/internal/store"
)

// dummyPasswordHash is a valid PHC-format argon2id hash used for login timing
// normalization. Running VerifyPassword against this for nonexistent users
// prevents email enumeration via response time differences.
const dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" //nolint:gosec // G101 false positive: public dummy hash for timing normalization, not a real credential

// registerAuthRoutes registers the unauthenticated auth endpoints on the huma
// API. Per-IP rate limiting for these paths is applied at the chi layer in
// Handler, before the huma adapter sees the request.
func registerAuthRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Tags:          []string{"auth"},
		Summary:       "Register a workshop and its Owner account",
		DefaultStatus: http.StatusCreated,
	}, srv.registerHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "login",
		Method:        http.MethodPost,
		Path:          "/auth/login",
		Tags:          []string{"auth"},
		Summary:       "Log in and receive an access token",
		DefaultStatus: http.StatusOK,
	}, srv.loginHandler)
}

// ── Register ──────────────────────────────────────────────────────────────────

// registerInput is the request body for POST /auth/register.
type registerInput struct {
	Body struct {
		WorkshopName string `json:"workshop_name" minLength:"1" maxLength:"200"  doc:"Name of the workshop business"`
		Name         string `json:"name"          minLength:"1" maxLength:"200"  doc:"Owner's display name"`
		Email        string `json:"email"         format:"email" maxLength:"254" doc:"Owner's email address"`
		Password     string `json:"password"      minLength:"8"  maxLength:"1024" doc:"Password (min 8 characters)"`
	}
}

// registerOutput is the response body for POST /auth/register.
type registerOutput struct {
	Status int
	Body   struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
		OrgID  string `json:"org_id"`
	}
}

// registerHandler handles POST /api/v1/auth/register. It creates the
// organisation and its Owner account in one transaction — a failure on either
// leaves nothing behind.
func (srv *Server) registerHandler(ctx context.Context, input *registerInput) (*registerOutput, error) {
	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	hash, err := auth.HashPassword(input.Body.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "register: hash password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	var org *store.Organisation
	var user *store.User
	err = srv.store.RunSystem(ctx, func(tx pgx.Tx) error {
		org, err = store.CreateOrganisation(ctx, tx, input.Body.WorkshopName)
		if err != nil {
			return err
		}
		user, err = store.CreateUser(ctx, tx, store.UserParams{
			OrgID:        uuid.NullUUID{UUID: org.ID, Valid: true},
			Name:         input.Body.Name,
			Email:        input.Body.Email,
			PasswordHash: hash,
			Role:         rbac.RoleOwner.String(),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, huma.Error409Conflict("email already registered")
		}
		slog.ErrorContext(ctx, "register: create organisation", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	token, err := auth.IssueToken([]byte(srv.cfg.JWTSecret), auth.Identity{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   rbac.RoleOwner,
	}, srv.cfg.TokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "register: issue token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	out := &registerOutput{Status: http.StatusCreated}
	out.Body.Token = token
	out.Body.UserID = user.ID.String()
	out.Body.OrgID = org.ID.String()
	return out, nil
}

// ── Login ─────────────────────────────────────────────────────────────────────

// loginInput is the request body for POST /auth/login.
type loginInput struct {
	Body struct {
		Email    string `json:"email"    format:"email" maxLength:"254"  doc:"Staff email"`
		Password string `json:"password" minLength:"8"  maxLength:"1024" doc:"Password"`
	}
}

// loginOutput is the response body for POST /auth/login.
type loginOutput struct {
	Body struct {
		Token string   `json:"token"`
		User  userBody `json:"user"`
	}
}

// loginHandler handles POST /api/v1/auth/login.
// Nonexistent users still run argon2 to normalize response timing.
func (srv *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	var user *store.User
	err := srv.store.RunSystem(ctx, func(tx pgx.Tx) error {
		var lookupErr error
		user, lookupErr = store.GetUserByEmail(ctx, tx, input.Body.Email)
		return lookupErr
	})
	if err != nil {
		slog.ErrorContext(ctx, "login: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	if user == nil {
		if !srv.acquireArgon2() {
			return nil, huma.Error503ServiceUnavailable("server busy, please retry")
		}
		_, _ = auth.VerifyPassword(input.Body.Password, dummyPasswordHash)
		srv.releaseArgon2()
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	ok, err := auth.VerifyPassword(input.Body.Password, user.PasswordHash)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "login: verify password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if !ok {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	// A role string the server no longer recognizes locks the account out
	// rather than granting a fallback privilege level.
	role, err := rbac.ParseRole(user.Role)
	if err != nil {
		slog.WarnContext(ctx, "login: unknown role on account",
			"user_id", user.ID, "role", user.Role)
		return nil, huma.Error403Forbidden("account role not recognized")
	}

	token, err := auth.IssueToken([]byte(srv.cfg.JWTSecret), auth.Identity{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   role,
	}, srv.cfg.TokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "login: issue token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	out := &loginOutput{}
	out.Body.Token = token
	out.Body.User = toUserBody(*user)
	return out, nil
}

// ── Me ────────────────────────────────────────────────────────────────────────

// meHandler handles GET /api/v1/auth/me and echoes the verified identity.
func (srv *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	resp := struct {
		UserID        string `json:"user_id"`
		OrgID         string `json:"org_id,omitempty"`
		Role          string `json:"role"`
		PlatformAdmin bool   `json:"platform_admin"`
	}{
		UserID:        id.UserID.String(),
		Role:          id.Role.String(),
		PlatformAdmin: id.IsPlatformAdmin(),
	}
	if id.OrgID.Valid {
		resp.OrgID = id.OrgID.UUID.String()
	}
	writeJSON(w, r, http.StatusOK, resp)
}
