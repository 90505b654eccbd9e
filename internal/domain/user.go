package domain

import "github.com/google/uuid"

// Known role names carried by the authentication layer
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// User is the already-authenticated identity attached to each request.
// Authentication itself happens upstream; this service only consumes it.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Roles    []string  `json:"roles"`
	Active   bool      `json:"active"`
}

// HasRole reports whether the user carries the given role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// IsModerator reports whether the user may moderate reviews
func (u *User) IsModerator() bool {
	return u.HasRole(RoleModerator) || u.HasRole(RoleAdmin)
}
