// ABOUTME: Identity is the verified caller identity for one request.
// ABOUTME: Built once by the auth middleware from a validated JWT; never persisted.
package auth

import (
	"github.com/google/uuid"

	"github.com/fixbay/workshop-ops/internal/rbac"
)

// Identity is the caller identity derived from a verified token. It is
// immutable for the lifetime of the request and is the sole input to the
// tenant-scoped transaction layer.
type Identity struct {
	UserID uuid.UUID
	// OrgID is invalid (Valid == false) for platform staff, who have no home
	// organisation. Tenant scoping still applies to them: an empty org is
	// bound to the transaction, and whether they can see anything is decided
	// by the row policies, keyed on the platform-admin flag.
	OrgID uuid.NullUUID
	Role  rbac.Role
}

// IsPlatformAdmin reports whether this identity bypasses tenant scoping at
// the database layer.
func (id Identity) IsPlatformAdmin() bool {
	return rbac.IsPlatformAdmin(id.Role)
}
