package models

import (
	"strings"
	"time"
)

// Role is the fixed category assigned to a user.
type Role string

const (
	RolePrincipal Role = "principal"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
)

// Roles lists every known role in display order.
var Roles = []Role{RolePrincipal, RoleTeacher, RoleStudent}

// ParseRole normalises a role name. The empty string is returned as-is with ok=true
// because it means "no role filter".
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r == "" {
		return r, true
	}
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return r, false
}

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the account may sign in.
func (u *User) Active() bool {
	return u != nil && u.Status != StatusInactive
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *Role
	Search string
	Page   int
	Limit  int
}
