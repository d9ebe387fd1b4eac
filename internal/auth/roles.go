// Package auth provides authentication and authorization types.
package auth

// Role represents a user role in the system.
type Role string

// Platform roles - global scope
const (
	RoleSuperAdmin Role = "super_admin" // Full platform access
)

// Organization roles - company scope
const (
	RoleTowingCompany Role = "towing_company" // Towing company admin
	RoleInsurer       Role = "insurer"        // Insurance company admin
	RoleDispatcher    Role = "dispatcher"     // Dispatch console access
)

// Field roles - assigned by a company
const (
	RoleTowOperator Role = "tow_operator" // Mobile tow truck operator
	RoleResponder   Role = "responder"    // Incident responder
	RoleDriver      Role = "driver"       // Company driver
)

// Civilian roles
const (
	RoleCivilian Role = "civilian" // Basic authenticated user
)

// RoleBanned is a sentinel: banned accounts keep their profile but are
// locked out of every authenticated route.
const RoleBanned Role = "banned"

// Permission represents a specific action on a resource.
type Permission string

// User permissions
const (
	PermUserRead   Permission = "user.read"
	PermUserUpdate Permission = "user.update"
	PermUserAssign Permission = "user.assign"
	PermUserBan    Permission = "user.ban"
)

// Claim permissions
const (
	PermClaimCreate Permission = "claim.create"
	PermClaimRead   Permission = "claim.read"
	PermClaimUpdate Permission = "claim.update"
	PermClaimDelete Permission = "claim.delete"
)

// Tow request permissions
const (
	PermTowCreate Permission = "tow.create"
	PermTowRead   Permission = "tow.read"
	PermTowAccept Permission = "tow.accept"
	PermTowUpdate Permission = "tow.update"
	PermTowCancel Permission = "tow.cancel"
)

// Policy permissions
const (
	PermPolicyCreate Permission = "policy.create"
	PermPolicyRead   Permission = "policy.read"
	PermPolicyUpdate Permission = "policy.update"
	PermPolicyDelete Permission = "policy.delete"
)

// Incident permissions
const (
	PermIncidentCreate Permission = "incident.create"
	PermIncidentRead   Permission = "incident.read"
	PermIncidentAssign Permission = "incident.assign"
	PermIncidentClose  Permission = "incident.close"
)

// Company permissions
const (
	PermCompanyCreate Permission = "company.create"
	PermCompanyRead   Permission = "company.read"
	PermCompanyUpdate Permission = "company.update"
	PermVehicleManage Permission = "vehicle.manage"
)

// Audit permissions
const (
	PermAuditRead Permission = "audit.read"
)

// RolePermissions maps roles to their default permissions.
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermUserRead, PermUserUpdate, PermUserAssign, PermUserBan,
		PermClaimCreate, PermClaimRead, PermClaimUpdate, PermClaimDelete,
		PermTowCreate, PermTowRead, PermTowAccept, PermTowUpdate, PermTowCancel,
		PermPolicyCreate, PermPolicyRead, PermPolicyUpdate, PermPolicyDelete,
		PermIncidentCreate, PermIncidentRead, PermIncidentAssign, PermIncidentClose,
		PermCompanyCreate, PermCompanyRead, PermCompanyUpdate, PermVehicleManage,
		PermAuditRead,
	},
	RoleTowingCompany: {
		PermUserRead, PermUserAssign,
		PermTowRead, PermTowAccept, PermTowUpdate, PermTowCancel,
		PermCompanyRead, PermCompanyUpdate, PermVehicleManage,
		PermIncidentRead,
	},
	RoleInsurer: {
		PermUserRead,
		PermClaimRead, PermClaimUpdate,
		PermPolicyCreate, PermPolicyRead, PermPolicyUpdate, PermPolicyDelete,
		PermCompanyRead, PermCompanyUpdate,
	},
	RoleDispatcher: {
		PermTowRead, PermTowAccept, PermTowUpdate,
		PermIncidentRead, PermIncidentAssign,
	},
	RoleTowOperator: {
		PermTowRead, PermTowUpdate,
	},
	RoleResponder: {
		PermIncidentRead, PermIncidentClose,
	},
	RoleDriver: {
		PermTowRead,
	},
	RoleCivilian: {
		PermClaimCreate, PermClaimRead,
		PermTowCreate, PermTowRead, PermTowCancel,
		PermIncidentCreate, PermIncidentRead,
		PermPolicyRead,
	},
}

// HomePath returns the landing route for a role. Used as the redirect
// target when a role-restricted guard denies access.
func HomePath(role Role) string {
	switch role {
	case RoleSuperAdmin:
		return "/admin/home"
	case RoleTowingCompany:
		return "/company/home"
	case RoleInsurer:
		return "/insurer/home"
	default:
		return "/unauthorized"
	}
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// Valid reports whether the role is one of the known role values.
func (r Role) Valid() bool {
	if r == RoleBanned {
		return true
	}
	_, ok := RolePermissions[r]
	return ok
}

// Staff reports whether the role is granted by a company assignment
// and therefore requires a company linkage on the profile.
func (r Role) Staff() bool {
	switch r {
	case RoleTowOperator, RoleResponder, RoleDriver, RoleDispatcher:
		return true
	}
	return false
}
