package access

import (
	"strings"
	"time"

	"memoria.org/internal/roles"
)

// Scope identifies where a grant applies: an organization, optionally
// narrowed to a single profile inside it. Scopes nest: an organization-level
// grant covers every profile in the organization unless a profile-level grant
// overrides it.
type Scope struct {
	OrgID     string `json:"org_id"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Org returns the organization-level scope containing s.
func (s Scope) Org() Scope {
	return Scope{OrgID: s.OrgID}
}

// IsProfile reports whether the scope is narrowed to a profile.
func (s Scope) IsProfile() bool {
	return s.ProfileID != ""
}

func (s Scope) valid() bool {
	return strings.TrimSpace(s.OrgID) != ""
}

// Grant assigns a role to a principal within a scope. At most one active
// grant exists per (principal, scope) pair; granting again replaces it.
//
// A pending grant is an invitation: PrincipalID holds the lowercased invited
// email until an account for that email signs up and the grant is rebound.
type Grant struct {
	ID           string     `json:"id"`
	PrincipalID  string     `json:"principal_id"`
	Scope        Scope      `json:"scope"`
	Role         roles.Role `json:"role"`
	GrantedBy    string     `json:"granted_by"`
	GrantedAt    time.Time  `json:"granted_at"`
	Pending      bool       `json:"pending,omitempty"`
	InvitedEmail string     `json:"invited_email,omitempty"`
}
