// Package permission holds the static role to capability table used to gate views
// and gateway routes.
package permission

import "github.com/noah-isme/rbac-console/internal/models"

// Capability is a named permission flag gating an action or a page.
type Capability string

const (
	CanAccessUsers    Capability = "canAccessUsers"
	CanAccessReports  Capability = "canAccessReports"
	CanAccessProfile  Capability = "canAccessProfile"
	CanCreateUsers    Capability = "canCreateUsers"
	CanEditUsers      Capability = "canEditUsers"
	CanDeleteUsers    Capability = "canDeleteUsers"
	CanViewAllReports Capability = "canViewAllReports"
)

var capabilities = []Capability{
	CanAccessUsers,
	CanAccessReports,
	CanAccessProfile,
	CanCreateUsers,
	CanEditUsers,
	CanDeleteUsers,
	CanViewAllReports,
}

// table must hold every capability for every role; it is never mutated.
var table = map[models.Role]map[Capability]bool{
	models.RolePrincipal: {
		CanAccessUsers:    true,
		CanAccessReports:  true,
		CanAccessProfile:  true,
		CanCreateUsers:    true,
		CanEditUsers:      true,
		CanDeleteUsers:    true,
		CanViewAllReports: true,
	},
	models.RoleTeacher: {
		CanAccessUsers:    false,
		CanAccessReports:  true,
		CanAccessProfile:  true,
		CanCreateUsers:    false,
		CanEditUsers:      false,
		CanDeleteUsers:    false,
		CanViewAllReports: true,
	},
	models.RoleStudent: {
		CanAccessUsers:    false,
		CanAccessReports:  false,
		CanAccessProfile:  true,
		CanCreateUsers:    false,
		CanEditUsers:      false,
		CanDeleteUsers:    false,
		CanViewAllReports: false,
	},
}

// Capable reports whether role holds capability. Unknown roles and capabilities are false.
func Capable(role models.Role, c Capability) bool {
	return table[role][c]
}

// All returns every capability in a stable order.
func All() []Capability {
	out := make([]Capability, len(capabilities))
	copy(out, capabilities)
	return out
}

// For returns a copy of the capability row of role. Unknown roles get an all-false row.
func For(role models.Role) map[Capability]bool {
	row := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		row[c] = Capable(role, c)
	}
	return row
}

// ParseCapability resolves a capability by its name.
func ParseCapability(name string) (Capability, bool) {
	for _, c := range capabilities {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}
