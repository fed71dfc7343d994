// ABOUTME: Static role → action permission table, the single source of truth for RBAC.
// ABOUTME: Every (role, action) pair is enumerated explicitly — a missing entry denies.
package rbac

// Action identifies an operation a staff member may attempt through the API.
type Action int

// Actions gated by the policy table.
const (
	ActionCustomerRead Action = iota + 1
	ActionCustomerCreate
	ActionCustomerUpdate
	ActionProductRead
	ActionProductCreate
	ActionJobCreate
	ActionJobRead
	ActionJobUpdateStatus
	ActionJobAssign
	ActionStaffCreate
	ActionStaffDelete
	ActionOrgCreate
)

// AllActions lists every defined Action, in declaration order. Exported so the
// policy tests can prove the table is exhaustive.
var AllActions = []Action{
	ActionCustomerRead,
	ActionCustomerCreate,
	ActionCustomerUpdate,
	ActionProductRead,
	ActionProductCreate,
	ActionJobCreate,
	ActionJobRead,
	ActionJobUpdateStatus,
	ActionJobAssign,
	ActionStaffCreate,
	ActionStaffDelete,
	ActionOrgCreate,
}

// AllRoles lists every defined Role, least to most privileged.
var AllRoles = []Role{RoleCounter, RoleMechanic, RoleManager, RoleAdmin, RoleOwner}

// policy is the full permission table. Rules of note:
//   - Only Workshop Manager assigns jobs to mechanics; platform admins manage
//     tenants but do not run workshop floors.
//   - Mechanics read and progress jobs; the handlers additionally restrict
//     them to jobs assigned to them. They never touch customer records.
//   - Staff account creation is Manager and up; deletion is platform-only.
var policy = map[Role]map[Action]bool{
	RoleCounter: {
		ActionCustomerRead:    true,
		ActionCustomerCreate:  true,
		ActionCustomerUpdate:  true,
		ActionProductRead:     true,
		ActionProductCreate:   false,
		ActionJobCreate:       true,
		ActionJobRead:         true,
		ActionJobUpdateStatus: false,
		ActionJobAssign:       false,
		ActionStaffCreate:     false,
		ActionStaffDelete:     false,
		ActionOrgCreate:       false,
	},
	RoleMechanic: {
		ActionCustomerRead:    false,
		ActionCustomerCreate:  false,
		ActionCustomerUpdate:  false,
		ActionProductRead:     true,
		ActionProductCreate:   false,
		ActionJobCreate:       false,
		ActionJobRead:         true,
		ActionJobUpdateStatus: true,
		ActionJobAssign:       false,
		ActionStaffCreate:     false,
		ActionStaffDelete:     false,
		ActionOrgCreate:       false,
	},
	RoleManager: {
		ActionCustomerRead:    true,
		ActionCustomerCreate:  true,
		ActionCustomerUpdate:  true,
		ActionProductRead:     true,
		ActionProductCreate:   true,
		ActionJobCreate:       true,
		ActionJobRead:         true,
		ActionJobUpdateStatus: true,
		ActionJobAssign:       true,
		ActionStaffCreate:     true,
		ActionStaffDelete:     false,
		ActionOrgCreate:       false,
	},
	RoleAdmin: {
		ActionCustomerRead:    true,
		ActionCustomerCreate:  true,
		ActionCustomerUpdate:  true,
		ActionProductRead:     true,
		ActionProductCreate:   true,
		ActionJobCreate:       true,
		ActionJobRead:         true,
		ActionJobUpdateStatus: true,
		ActionJobAssign:       false,
		ActionStaffCreate:     true,
		ActionStaffDelete:     true,
		ActionOrgCreate:       true,
	},
	RoleOwner: {
		ActionCustomerRead:    true,
		ActionCustomerCreate:  true,
		ActionCustomerUpdate:  true,
		ActionProductRead:     true,
		ActionProductCreate:   true,
		ActionJobCreate:       true,
		ActionJobRead:         true,
		ActionJobUpdateStatus: true,
		ActionJobAssign:       false,
		ActionStaffCreate:     true,
		ActionStaffDelete:     true,
		ActionOrgCreate:       true,
	},
}

// Can reports whether role is permitted to perform action. Unknown roles and
// actions deny.
func Can(role Role, action Action) bool {
	perms, ok := policy[role]
	if !ok {
		return false
	}
	return perms[action]
}
