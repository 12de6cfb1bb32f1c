package access

import "context"

// GrantStore describes persistence operations required by the access
// subsystem. Each write touches a single grant row and is atomic; there is no
// transaction spanning a grant mutation and the audit append that follows it.
type GrantStore interface {
	// Get returns the grant for (scope, principal) or ErrNotFound.
	Get(ctx context.Context, scope Scope, principalID string) (*Grant, error)
	// Put creates or replaces the grant for its (scope, principal) pair.
	Put(ctx context.Context, grant *Grant) error
	// Delete removes the grant for (scope, principal). Deleting a missing
	// grant returns ErrNotFound; callers decide whether that matters.
	Delete(ctx context.Context, scope Scope, principalID string) error
	// ListByScope returns grants for a scope ordered by grant time.
	ListByScope(ctx context.Context, scope Scope) ([]Grant, error)
	// ListPendingByEmail returns unresolved invitations for a lowercased email.
	ListPendingByEmail(ctx context.Context, email string) ([]Grant, error)
}

// ProfileDirectory is the narrow profile lookup the evaluator needs for the
// creator override. Implemented by the profile store.
type ProfileDirectory interface {
	// CreatorOf returns the id of the principal that created the profile,
	// or ErrNotFound.
	CreatorOf(ctx context.Context, profileID string) (string, error)
}
