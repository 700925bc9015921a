package registry

import (
	"github.com/simple-thread/pharos/constants"
)

// User is the resolved identity of an API caller: who they are, which
// institution they belong to, and their role. Authentication itself
// happens outside this service; we only consume the resolved
// (role, institution) pair.
type User struct {
	ID            int64  `json:"id,omitempty"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	InstitutionID int64  `json:"institution_id"`
	// InstitutionIdentifier is the domain-style identifier of the
	// user's institution. WorkItems reference institutions by
	// identifier rather than id, so scoping needs both forms.
	InstitutionIdentifier string `json:"institution_identifier,omitempty"`
	Role                  string `json:"role"`
}

// Admin returns true for APTrust system admins, who have unconditional
// access to everything.
func (u *User) Admin() bool {
	return u.Role == constants.RoleAdmin
}

// InstitutionalAdmin returns true for admins of a member institution.
func (u *User) InstitutionalAdmin() bool {
	return u.Role == constants.RoleInstAdmin
}

// InstitutionalUser returns true for regular institutional users, who
// have read-only access to non-restricted resources at their own
// institution.
func (u *User) InstitutionalUser() bool {
	return u.Role == constants.RoleInstUser
}
