package profile

import "context"

// Store persists profiles. Status changes go through SetStatus, a single-row
// compare-and-set, so a transition observed against stale state fails instead
// of clobbering a concurrent one.
type Store interface {
	Create(ctx context.Context, p *Profile) error
	// Find returns the profile or ErrNotFound.
	Find(ctx context.Context, id string) (*Profile, error)
	// SetStatus moves the profile from one status to another. Returns
	// ErrInvalidTransition when the stored status no longer matches from,
	// ErrNotFound when the profile does not exist.
	SetStatus(ctx context.Context, id string, from, to Status) error
	// UpdateContent replaces the content fields of an existing profile.
	UpdateContent(ctx context.Context, p *Profile) error
	ListByOrg(ctx context.Context, orgID string) ([]*Profile, error)
	// CreatorOf satisfies the evaluator's profile directory.
	CreatorOf(ctx context.Context, profileID string) (string, error)
}
