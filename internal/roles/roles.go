// Package roles defines the closed role vocabulary used across the service
// and the seniority ordering between roles. All functions are pure; the only
// failure mode is an unknown role string at a boundary.
package roles

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole indicates a role string outside the closed set.
var ErrInvalidRole = errors.New("roles: invalid role")

// Role is one of the fixed roles a principal can hold within a scope.
type Role string

const (
	Admin       Role = "admin"
	Editor      Role = "editor"
	Contributor Role = "contributor"
	Viewer      Role = "viewer"
)

// rank orders roles by seniority; higher rank means more capability.
var rank = map[Role]int{
	Viewer:      1,
	Contributor: 2,
	Editor:      3,
	Admin:       4,
}

// All lists every valid role, most senior first.
var All = []Role{Admin, Editor, Contributor, Viewer}

// OrgRoles is the subset accepted for organization-level university grants.
var OrgRoles = []Role{Admin, Editor, Contributor}

// Parse validates a role string from an external boundary.
func Parse(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := rank[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// Valid reports whether r belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Satisfies reports whether a principal holding r meets the required role,
// i.e. r is equal to or senior to required in the total order.
func Satisfies(held, required Role) bool {
	hr, ok := rank[held]
	if !ok {
		return false
	}
	rr, ok := rank[required]
	if !ok {
		return false
	}
	return hr >= rr
}

// Assignable returns the roles a principal holding held may grant to others:
// every role at or below held in seniority. Unknown roles yield nil.
func Assignable(held Role) []Role {
	hr, ok := rank[held]
	if !ok {
		return nil
	}
	out := make([]Role, 0, len(All))
	for _, r := range All {
		if rank[r] <= hr {
			out = append(out, r)
		}
	}
	return out
}

// OrgRole validates a role string against the organization-level subset.
func OrgRole(raw string) (Role, error) {
	role, err := Parse(raw)
	if err != nil {
		return "", err
	}
	for _, r := range OrgRoles {
		if role == r {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not grantable at organization level", ErrInvalidRole, raw)
}
