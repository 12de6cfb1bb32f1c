package access

import (
	"context"
	"errors"

	"memoria.org/internal/roles"
)

// Evaluator answers "does this principal hold a role in this scope" questions.
// It is read-only, never caches, and reads committed grant state on every
// call: the same evaluator gates UI-adjacent reads and the trusted server
// boundary, so both checks share one source of truth.
type Evaluator struct {
	grants   GrantStore
	profiles ProfileDirectory
}

// NewEvaluator constructs an Evaluator. The profile directory is required for
// the creator override in IsEditor.
func NewEvaluator(grants GrantStore, profiles ProfileDirectory) (*Evaluator, error) {
	if grants == nil {
		return nil, errors.New("access: grant store is required")
	}
	if profiles == nil {
		return nil, errors.New("access: profile directory is required")
	}
	return &Evaluator{grants: grants, profiles: profiles}, nil
}

// EffectiveRole resolves the role a principal holds in a scope. Profile-level
// grants win; absent one, the organization-level grant applies. Pending
// invitation grants confer nothing. Returns ok=false when no grant exists at
// either level.
func (e *Evaluator) EffectiveRole(ctx context.Context, principalID string, scope Scope) (roles.Role, bool, error) {
	if principalID == "" || !scope.valid() {
		return "", false, nil
	}
	if scope.IsProfile() {
		grant, err := e.grants.Get(ctx, scope, principalID)
		switch {
		case err == nil:
			if !grant.Pending {
				return grant.Role, true, nil
			}
		case !errors.Is(err, ErrNotFound):
			return "", false, err
		}
	}
	grant, err := e.grants.Get(ctx, scope.Org(), principalID)
	switch {
	case err == nil:
		if !grant.Pending {
			return grant.Role, true, nil
		}
		return "", false, nil
	case errors.Is(err, ErrNotFound):
		return "", false, nil
	default:
		return "", false, err
	}
}

// IsAdmin reports whether the principal's effective organization role
// satisfies admin.
func (e *Evaluator) IsAdmin(ctx context.Context, orgID, principalID string) (bool, error) {
	role, ok, err := e.EffectiveRole(ctx, principalID, Scope{OrgID: orgID})
	if err != nil || !ok {
		return false, err
	}
	return roles.Satisfies(role, roles.Admin), nil
}

// IsEditor reports whether the principal may edit the profile: either the
// effective role satisfies editor, or the principal created the profile.
// The creator keeps edit capability even after their role is revoked.
func (e *Evaluator) IsEditor(ctx context.Context, orgID, profileID, principalID string) (bool, error) {
	role, ok, err := e.EffectiveRole(ctx, principalID, Scope{OrgID: orgID, ProfileID: profileID})
	if err != nil {
		return false, err
	}
	if ok && roles.Satisfies(role, roles.Editor) {
		return true, nil
	}
	creator, err := e.profiles.CreatorOf(ctx, profileID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return creator != "" && creator == principalID, nil
}
