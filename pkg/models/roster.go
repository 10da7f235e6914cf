package models

import (
	"strings"
	"time"
)

// Role is a caller's administrative role.
type Role string

const (
	RoleNone       Role = "none"
	RoleMember     Role = "member"
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleNone:       0,
	RoleMember:     1,
	RoleEditor:     2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// ParseRole maps a roster role string onto a Role by exact match.
// Unknown strings resolve to RoleNone.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleNone
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// IsAdmin reports whether r is admin or super_admin.
func (r Role) IsAdmin() bool {
	return r.AtLeast(RoleAdmin)
}

// Assignable reports whether r may be stored in the roster.
func (r Role) Assignable() bool {
	return r != RoleNone && roleRank[r] > 0
}

// AdminRosterEntry is one row of the administrator roster.
type AdminRosterEntry struct {
	ID        string    `json:"id,omitempty" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	Name      string    `json:"name,omitempty" db:"name"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
