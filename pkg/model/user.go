package model

// RoleAdmin is the role name granting access to the admin listings.
const RoleAdmin = "admin"

// User represents a Shennong account.
type User struct {
	ID       int    `json:"id"`
	Created  string `json:"created"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
}

// Role is a role that can be associated with a user.
type Role struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
}

// HasRole returns true if the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Role == name {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Registration is the payload for creating an account.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}
