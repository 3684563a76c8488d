package auth

import "errors"

// Role is the authorisation tier carried in an access token.
type Role string

const (
	// RoleViewer can read proxy status, the command journal and the live
	// event stream.
	RoleViewer Role = "viewer"

	// RoleAdmin can additionally trigger maintenance actions such as a
	// forced resubscribe.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmptySecret  = errors.New("signing secret is empty")
	ErrEmptySubject = errors.New("token subject is empty")
)
