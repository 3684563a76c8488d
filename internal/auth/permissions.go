package auth

// Permission represents a named capability of the admin API.
type Permission string

// Permission constants.
const (
	PermStatusRead   Permission = "status:read"
	PermCommandsRead Permission = "commands:read"
	PermEventsStream Permission = "events:stream"
	PermSystemAdmin  Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStatusRead,
		PermCommandsRead,
		PermEventsStream,
	},
	RoleAdmin: {
		PermStatusRead,
		PermCommandsRead,
		PermEventsStream,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to a role,
// nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
