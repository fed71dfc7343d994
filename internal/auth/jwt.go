// ABOUTME: JWT issuance and parsing for workshop staff access tokens.
// ABOUTME: Always enforces HS256 and expiry — never call jwt.Parse directly.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fixbay/workshop-ops/internal/rbac"
)

// Claims holds the claims embedded in an access token.
type Claims struct {
	jwt.RegisteredClaims
	// UserID is the authenticated user's UUID. The json:"sub" tag intentionally
	// shadows RegisteredClaims.Subject so "sub" serializes as a UUID string.
	// Go's encoding/json picks the outermost field when embedded tags collide.
	UserID uuid.UUID `json:"sub"`
	// OrgID is the user's organisation. Omitted for platform staff.
	OrgID *uuid.UUID `json:"org,omitempty"`
	// Role is the wire form of the staff role, e.g. "Workshop Manager".
	Role string `json:"role"`
}

// IssueToken creates a signed HS256 access token for the given identity.
func IssueToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: id.UserID,
		Role:   id.Role.String(),
	}
	if id.OrgID.Valid {
		org := id.OrgID.UUID
		claims.OrgID = &org
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an HS256 access token and returns the caller identity.
// Returns an error if the token is expired, uses a wrong algorithm, is
// malformed, or carries a role string the server does not recognize — the
// role check fails closed rather than defaulting to any privilege level.
func ParseToken(tokenStr string, secret []byte) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("access token role: %w", err)
	}

	id := Identity{UserID: claims.UserID, Role: role}
	if claims.OrgID != nil {
		id.OrgID = uuid.NullUUID{UUID: *claims.OrgID, Valid: true}
	}
	return id, nil
}
