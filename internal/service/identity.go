package service

import "strings"

// Role names carried in bearer tokens.
const (
	RoleStudent       = "student"
	RoleInstructor    = "instructor"
	RoleAdministrator = "administrator"
)

// Identity is the authenticated caller as vouched for by the host's token.
// The zero value is unauthenticated.
type Identity struct {
	UserID int
	Roles  []string
}

// Authenticated reports whether the identity names a user.
func (id Identity) Authenticated() bool {
	return id.UserID > 0
}

// HasRole reports whether the identity carries role, case-insensitively.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdministrator reports whether the identity may act on any exam.
func (id Identity) IsAdministrator() bool {
	return id.HasRole(RoleAdministrator)
}

// IsStaff reports whether the identity may author exams and read reports.
func (id Identity) IsStaff() bool {
	return id.HasRole(RoleInstructor) || id.IsAdministrator()
}
