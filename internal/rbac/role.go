// ABOUTME: Workshop staff Role type with ordered integer constants.
// ABOUTME: ParseRole fails closed — an unrecognized role string is an error, never a default.
package rbac

import "fmt"

// Role represents a workshop staff permission level. Higher integer values
// broadly grant more permissions, but the ordering is not the authority for
// access decisions — the policy table in policy.go is.
type Role int

// Role constants, ordered from least to most privileged.
const (
	RoleCounter  Role = 1 // front-of-house intake staff
	RoleMechanic Role = 2 // workshop floor, scoped to assigned jobs
	RoleManager  Role = 3 // workshop manager
	RoleAdmin    Role = 4 // platform administrator (cross-tenant)
	RoleOwner    Role = 5 // platform owner (cross-tenant)
)

// Wire strings as they appear in JWT role claims and the users.role column.
const (
	roleCounterStr  = "Counter"
	roleMechanicStr = "Mechanic"
	roleManagerStr  = "Workshop Manager"
	roleAdminStr    = "Admin"
	roleOwnerStr    = "Owner"
)

// ParseRole converts a role claim string to a Role. Unknown values return an
// error: a token carrying a role we do not recognize must be rejected, not
// quietly mapped to some default privilege level.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleCounterStr:
		return RoleCounter, nil
	case roleMechanicStr:
		return RoleMechanic, nil
	case roleManagerStr:
		return RoleManager, nil
	case roleAdminStr:
		return RoleAdmin, nil
	case roleOwnerStr:
		return RoleOwner, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// String returns the wire form of the role.
func (r Role) String() string {
	switch r {
	case RoleCounter:
		return roleCounterStr
	case RoleMechanic:
		return roleMechanicStr
	case RoleManager:
		return roleManagerStr
	case RoleAdmin:
		return roleAdminStr
	case RoleOwner:
		return roleOwnerStr
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// IsPlatformAdmin reports whether the role carries platform-wide scope.
// These are the only two roles for which the tenant isolation layer sets
// app.is_platform_admin = 'true' on the database transaction.
func IsPlatformAdmin(r Role) bool {
	return r == RoleAdmin || r == RoleOwner
}
