package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"memoria.org/internal/access"
	"memoria.org/internal/audit"
	"memoria.org/internal/roles"
)

type fixture struct {
	grants   *access.InMemory
	profiles *InMemory
	log      *audit.InMemory
	wf       *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	grants := access.NewInMemory()
	profiles := NewInMemory()
	log := audit.NewInMemory()
	eval, err := access.NewEvaluator(grants, profiles)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	rec, err := audit.NewRecorder(log, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	wf, err := NewWorkflow(profiles, eval, rec)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	return &fixture{grants: grants, profiles: profiles, log: log, wf: wf}
}

func (f *fixture) grant(t *testing.T, principalID, orgID string, role roles.Role) {
	t.Helper()
	err := f.grants.Put(context.Background(), &access.Grant{
		PrincipalID: principalID,
		Scope:       access.Scope{OrgID: orgID},
		Role:        role,
		GrantedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
}

func (f *fixture) create(t *testing.T, creatorID, orgID string) *Profile {
	t.Helper()
	p, err := f.wf.Create(context.Background(), creatorID, orgID, TypeMemorial, "Jane Doe")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestCreateRequiresContributor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "v1", "org-1", roles.Viewer)

	if _, err := f.wf.Create(ctx, "v1", "org-1", TypeMemorial, "Jane"); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("viewer must not create profiles, got %v", err)
	}
	f.grant(t, "c1", "org-1", roles.Contributor)
	p, err := f.wf.Create(ctx, "c1", "org-1", TypePersonal, "John")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusDraft {
		t.Fatalf("new profile must start in draft, got %s", p.Status)
	}
	if p.CreatedBy != "c1" {
		t.Fatalf("expected creator c1, got %s", p.CreatedBy)
	}
}

func TestLifecycleReachability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "admin-1", "org-1", roles.Admin)
	p := f.create(t, "admin-1", "org-1")

	// From draft only pending is reachable.
	if err := f.wf.Approve(ctx, "admin-1", p.ID, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("draft->published must fail, got %v", err)
	}
	if err := f.wf.Archive(ctx, "admin-1", p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("draft->archived must fail, got %v", err)
	}
	if err := f.wf.Submit(ctx, "admin-1", p.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// From pending only published or draft.
	if err := f.wf.Submit(ctx, "admin-1", p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->pending must fail, got %v", err)
	}
	if err := f.wf.Archive(ctx, "admin-1", p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->archived must fail, got %v", err)
	}
	if err := f.wf.Approve(ctx, "admin-1", p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// From published only archived.
	if err := f.wf.Approve(ctx, "admin-1", p.ID, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approving published must fail, got %v", err)
	}
	if err := f.wf.Archive(ctx, "admin-1", p.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	// Archived is terminal.
	for name, call := range map[string]func() error{
		"submit":  func() error { return f.wf.Submit(ctx, "admin-1", p.ID) },
		"approve": func() error { return f.wf.Approve(ctx, "admin-1", p.ID, "") },
		"reject":  func() error { return f.wf.Reject(ctx, "admin-1", p.ID, "") },
		"archive": func() error { return f.wf.Archive(ctx, "admin-1", p.ID) },
	} {
		if err := call(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s from archived must fail, got %v", name, err)
		}
	}
}

func TestSubmitRequiresEditorOrCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "c1", "org-1", roles.Contributor)
	p := f.create(t, "c1", "org-1")

	f.grant(t, "c2", "org-1", roles.Contributor)
	if err := f.wf.Submit(ctx, "c2", p.ID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("unrelated contributor must not submit, got %v", err)
	}
	// Creator override: c1 holds only contributor but created the profile.
	if err := f.wf.Submit(ctx, "c1", p.ID); err != nil {
		t.Fatalf("creator submit: %v", err)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "e1", "org-1", roles.Editor)
	p := f.create(t, "e1", "org-1")
	if err := f.wf.Submit(ctx, "e1", p.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.wf.Approve(ctx, "e1", p.ID, ""); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("editor approving must fail, got %v", err)
	}
	got, err := f.wf.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("denied approval must not mutate status, got %s", got.Status)
	}
}

func TestRejectReturnsToDraftWithComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "E", "S1", roles.Editor)
	f.grant(t, "A", "S1", roles.Admin)

	p, err := f.wf.Create(ctx, "E", "S1", TypeMemorial, "P")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.wf.Submit(ctx, "E", p.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.wf.Reject(ctx, "A", p.ID, "needs more photos"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	got, err := f.wf.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusDraft {
		t.Fatalf("expected draft after reject, got %s", got.Status)
	}

	entries := f.log.All()
	var found bool
	for _, e := range entries {
		if e.Action == audit.ActionReject {
			found = true
			if e.Comment != "needs more photos" {
				t.Fatalf("reject comment lost, got %q", e.Comment)
			}
		}
	}
	if !found {
		t.Fatal("expected reject audit entry")
	}
}

func TestPublishNotBlockedByIncompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "admin-1", "org-1", roles.Admin)
	p := f.create(t, "admin-1", "org-1")

	if score := CompletenessScore(p); score >= 100 {
		t.Fatalf("fixture profile should be incomplete, score %d", score)
	}
	if err := f.wf.Submit(ctx, "admin-1", p.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.wf.Approve(ctx, "admin-1", p.ID, "publish and add details later"); err != nil {
		t.Fatalf("Approve must not care about completeness: %v", err)
	}
	got, _ := f.wf.Get(ctx, p.ID)
	if got.Status != StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}
}

func TestEveryTransitionAppendsOneAuditEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "admin-1", "org-1", roles.Admin)
	p := f.create(t, "admin-1", "org-1")

	steps := []func() error{
		func() error { return f.wf.Submit(ctx, "admin-1", p.ID) },
		func() error { return f.wf.Reject(ctx, "admin-1", p.ID, "not yet") },
		func() error { return f.wf.Submit(ctx, "admin-1", p.ID) },
		func() error { return f.wf.Approve(ctx, "admin-1", p.ID, "") },
		func() error { return f.wf.Archive(ctx, "admin-1", p.ID) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := len(f.log.All()); got != len(steps) {
		t.Fatalf("expected %d audit entries, got %d", len(steps), got)
	}
}

func TestSaveDraftAppliesBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "e1", "org-1", roles.Editor)
	p := f.create(t, "e1", "org-1")

	bio := "A remarkable life."
	when := time.Date(1950, 6, 1, 0, 0, 0, 0, time.UTC)
	updated, err := f.wf.SaveDraft(ctx, "e1", p.ID, DraftBuffer{
		Biography: &bio,
		BirthDate: &when,
		Timeline:  []TimelineEntry{{When: when, Title: "Born"}},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if updated.Biography != bio || updated.BirthDate == nil || len(updated.Timeline) != 1 {
		t.Fatalf("buffer not applied: %+v", updated)
	}
	// Untouched fields survive.
	if updated.Name != "Jane Doe" {
		t.Fatalf("name clobbered: %q", updated.Name)
	}
}

func TestSaveDraftDeniedForNonEditors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "e1", "org-1", roles.Editor)
	f.grant(t, "v1", "org-1", roles.Viewer)
	p := f.create(t, "e1", "org-1")

	name := "Hijacked"
	if _, err := f.wf.SaveDraft(ctx, "v1", p.ID, DraftBuffer{Name: &name}); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("viewer must not save drafts, got %v", err)
	}
}

func TestSaveDraftArchivedIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "admin-1", "org-1", roles.Admin)
	p := f.create(t, "admin-1", "org-1")
	_ = f.wf.Submit(ctx, "admin-1", p.ID)
	_ = f.wf.Approve(ctx, "admin-1", p.ID, "")
	_ = f.wf.Archive(ctx, "admin-1", p.ID)

	name := "Too late"
	if _, err := f.wf.SaveDraft(ctx, "admin-1", p.ID, DraftBuffer{Name: &name}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("archived profile must be immutable, got %v", err)
	}
}

func TestTransitionOnMissingProfile(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "admin-1", "org-1", roles.Admin)
	if err := f.wf.Submit(context.Background(), "admin-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
