package models

// Roles carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller of a core operation.
type Principal struct {
	ID   string
	Role string
}

// IsAdmin reports whether p holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
