package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memoria.org/internal/access"
	"memoria.org/internal/audit"
	"memoria.org/internal/ids"
	"memoria.org/internal/obs"
	"memoria.org/internal/roles"
)

// The complete transition table. Submission is an editor action; review
// decisions and archival are admin actions. Archived is terminal.
var transitions = map[Status]map[Status]string{
	StatusDraft:     {StatusPending: audit.ActionSubmit},
	StatusPending:   {StatusPublished: audit.ActionApprove, StatusDraft: audit.ActionReject},
	StatusPublished: {StatusArchived: audit.ActionArchive},
}

// Workflow drives profiles through the approval state machine. Permission is
// re-evaluated against current grant state on every call, immediately before
// the status write; nothing is trusted from earlier in the caller's session.
type Workflow struct {
	store Store
	eval  *access.Evaluator
	rec   *audit.Recorder
	now   func() time.Time
}

// WorkflowOption configures Workflow behavior.
type WorkflowOption func(*Workflow)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow constructs the workflow service.
func NewWorkflow(store Store, eval *access.Evaluator, rec *audit.Recorder, opts ...WorkflowOption) (*Workflow, error) {
	if store == nil {
		return nil, errors.New("profile: store is required")
	}
	if eval == nil {
		return nil, errors.New("profile: evaluator is required")
	}
	if rec == nil {
		return nil, errors.New("profile: audit recorder is required")
	}
	w := &Workflow{store: store, eval: eval, rec: rec, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Create starts a new profile in draft. Any principal holding at least
// contributor on the organization may create one; the creator keeps edit
// capability for the profile's lifetime.
func (w *Workflow) Create(ctx context.Context, creatorID, orgID string, typ Type, name string) (*Profile, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, access.ErrUnauthenticated
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	switch typ {
	case TypeMemorial, TypePersonal:
	default:
		return nil, fmt.Errorf("%w: unknown profile type %q", ErrInvalidArgument, typ)
	}
	role, ok, err := w.eval.EffectiveRole(ctx, creatorID, access.Scope{OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if !ok || !roles.Satisfies(role, roles.Contributor) {
		return nil, access.ErrPermissionDenied
	}
	now := w.now().UTC()
	p := &Profile{
		ID:        ids.New(),
		OrgID:     orgID,
		Type:      typ,
		Status:    StatusDraft,
		CreatedBy: creatorID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads a profile.
func (w *Workflow) Get(ctx context.Context, id string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidArgument)
	}
	return w.store.Find(ctx, id)
}

// ListByOrg returns an organization's profiles ordered by creation time.
func (w *Workflow) ListByOrg(ctx context.Context, orgID string) ([]*Profile, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	return w.store.ListByOrg(ctx, orgID)
}

// Submit moves a draft into review. The caller must hold editor on the scope
// or be the profile's creator.
func (w *Workflow) Submit(ctx context.Context, actorID, profileID string) error {
	return w.transition(ctx, actorID, profileID, StatusDraft, StatusPending, "")
}

// Approve publishes a pending profile. Admin only. The completeness score is
// advisory: a half-filled profile publishes fine, details can be added later.
func (w *Workflow) Approve(ctx context.Context, actorID, profileID, comment string) error {
	return w.transition(ctx, actorID, profileID, StatusPending, StatusPublished, comment)
}

// Reject sends a pending profile back to draft. Admin only.
func (w *Workflow) Reject(ctx context.Context, actorID, profileID, comment string) error {
	return w.transition(ctx, actorID, profileID, StatusPending, StatusDraft, comment)
}

// Archive retires a published profile. Admin only; archived is terminal but
// the record stays visible; nothing is hard-deleted.
func (w *Workflow) Archive(ctx context.Context, actorID, profileID string) error {
	return w.transition(ctx, actorID, profileID, StatusPublished, StatusArchived, "")
}

func (w *Workflow) transition(ctx context.Context, actorID, profileID string, from, to Status, comment string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return access.ErrUnauthenticated
	}
	p, err := w.store.Find(ctx, profileID)
	if err != nil {
		return err
	}
	action, ok := transitions[p.Status][to]
	if !ok || p.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}

	// Re-validate permission right before the write, never from a role read
	// earlier in the UI session.
	var allowed bool
	switch action {
	case audit.ActionSubmit:
		allowed, err = w.eval.IsEditor(ctx, p.OrgID, p.ID, actorID)
	default:
		allowed, err = w.eval.IsAdmin(ctx, p.OrgID, actorID)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return access.ErrPermissionDenied
	}

	if err := w.store.SetStatus(ctx, p.ID, from, to); err != nil {
		return err
	}
	obs.IncLifecycleTransition(action)
	return w.rec.Record(ctx, audit.Entry{
		Action:      action,
		OrgID:       p.OrgID,
		ProfileID:   p.ID,
		PrincipalID: p.CreatedBy,
		ActorID:     actorID,
		Comment:     comment,
	})
}

// SaveDraft applies a caller-owned draft buffer to the profile's content
// fields. The caller must pass the editor check; archived profiles are
// immutable.
func (w *Workflow) SaveDraft(ctx context.Context, actorID, profileID string, buf DraftBuffer) (*Profile, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, access.ErrUnauthenticated
	}
	p, err := w.store.Find(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusArchived {
		return nil, fmt.Errorf("%w: archived profiles are immutable", ErrInvalidTransition)
	}
	allowed, err := w.eval.IsEditor(ctx, p.OrgID, p.ID, actorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, access.ErrPermissionDenied
	}
	buf.apply(p)
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be cleared", ErrInvalidArgument)
	}
	p.UpdatedAt = w.now().UTC()
	if err := w.store.UpdateContent(ctx, p); err != nil {
		return nil, err
	}
	return w.store.Find(ctx, p.ID)
}
