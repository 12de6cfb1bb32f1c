package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"memoria.org/internal/audit"
	"memoria.org/internal/roles"
)

type fixture struct {
	store *InMemory
	log   *audit.InMemory
	svc   *Service
	eval  *Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewInMemory()
	log := audit.NewInMemory()
	eval, err := NewEvaluator(store, stubProfiles{})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	rec, err := audit.NewRecorder(log, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	var tick int64
	svc, err := NewService(store, eval, rec, WithClock(func() time.Time {
		tick++
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{store: store, log: log, svc: svc, eval: eval}
}

func TestGrantReadAfterWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)

	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	role, ok, err := f.eval.EffectiveRole(ctx, "u2", scope)
	if err != nil {
		t.Fatalf("EffectiveRole: %v", err)
	}
	if !ok || role != roles.Editor {
		t.Fatalf("expected editor immediately after grant, got %q ok=%v", role, ok)
	}
}

func TestGrantReplacesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)

	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Viewer); err != nil {
		t.Fatalf("second grant: %v", err)
	}
	grants, err := f.svc.ListGrants(ctx, scope)
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	var found int
	for _, g := range grants {
		if g.PrincipalID == "u2" {
			found++
			if g.Role != roles.Viewer {
				t.Fatalf("expected replacement role viewer, got %s", g.Role)
			}
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one grant for u2, got %d", found)
	}
}

func TestContributorCannotGrantAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "c1", scope, roles.Contributor)

	err := f.svc.Grant(ctx, "c1", "u2", scope, roles.Admin)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if len(f.log.All()) != 0 {
		t.Fatal("denied grant must not append audit entries")
	}
}

func TestEditorCanGrantAtOrBelowOwnRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "e1", scope, roles.Editor)

	if err := f.svc.Grant(ctx, "e1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("editor granting editor: %v", err)
	}
	if err := f.svc.Grant(ctx, "e1", "u3", scope, roles.Viewer); err != nil {
		t.Fatalf("editor granting viewer: %v", err)
	}
	if err := f.svc.Grant(ctx, "e1", "u4", scope, roles.Admin); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("editor granting admin must fail, got %v", err)
	}
}

func TestGrantRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)
	err := f.svc.Grant(context.Background(), "admin-1", "u2", scope, roles.Role("owner"))
	if !errors.Is(err, roles.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)

	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := f.svc.Revoke(ctx, "admin-1", "u2", scope); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := f.svc.Revoke(ctx, "admin-1", "u2", scope); err != nil {
		t.Fatalf("second revoke must be a no-op success, got %v", err)
	}

	entries := f.log.All()
	var removed int
	for _, e := range entries {
		if e.Action == audit.ActionRoleRemoved {
			removed++
			if e.Role != roles.Editor {
				t.Fatalf("role_removed must capture the removed role, got %s", e.Role)
			}
		}
	}
	if removed != 1 {
		t.Fatalf("expected exactly one role_removed entry, got %d", removed)
	}
}

func TestRevokeWithoutAnyRoleIsDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)
	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	err := f.svc.Revoke(ctx, "stranger", "u2", scope)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestEveryMutationAppendsOneAuditEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "admin-1", scope, roles.Admin)

	if err := f.svc.Grant(ctx, "admin-1", "u2", scope, roles.Editor); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := f.svc.Invite(ctx, "admin-1", "eve@example.com", scope, roles.Viewer); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if err := f.svc.Revoke(ctx, "admin-1", "u2", scope); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	entries := f.log.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}
	seen := make(map[time.Time]bool)
	for _, e := range entries {
		if e.OccurredAt.IsZero() {
			t.Fatal("audit entry without timestamp")
		}
		if seen[e.OccurredAt] {
			t.Fatalf("duplicate audit timestamp %v", e.OccurredAt)
		}
		seen[e.OccurredAt] = true
	}
}

func TestInviteAndResolveBindsGrantToNewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "S1"}
	seedGrant(t, f.store, "admin-A", scope, roles.Admin)

	id, err := f.svc.Invite(ctx, "admin-A", "Bob@Example.com", scope, roles.Editor)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if id == "" {
		t.Fatal("expected invitation id")
	}

	// Nobody named bob yet: the invitation grants nothing.
	if _, ok, _ := f.eval.EffectiveRole(ctx, "bob-id", scope); ok {
		t.Fatal("unresolved invitation must not confer a role")
	}

	if err := f.svc.ResolveInvitation(ctx, "bob@example.com", "bob-id"); err != nil {
		t.Fatalf("ResolveInvitation: %v", err)
	}

	role, ok, err := f.eval.EffectiveRole(ctx, "bob-id", scope)
	if err != nil {
		t.Fatalf("EffectiveRole: %v", err)
	}
	if !ok || role != roles.Editor {
		t.Fatalf("expected editor after resolution, got %q ok=%v", role, ok)
	}

	// The email key is gone.
	if _, err := f.store.Get(ctx, scope, "bob@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending grant should be rebound, got %v", err)
	}

	// Only the original user_invited entry exists for the invitation.
	var invited int
	for _, e := range f.log.All() {
		if e.Action == audit.ActionUserInvited {
			invited++
		}
	}
	if invited != 1 {
		t.Fatalf("expected exactly one user_invited entry, got %d", invited)
	}
}

func TestResolveInvitationWithoutPendingIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ResolveInvitation(context.Background(), "ghost@example.com", "u9"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestInviteRequiresAssignableRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := Scope{OrgID: "org-1"}
	seedGrant(t, f.store, "c1", scope, roles.Contributor)

	if _, err := f.svc.Invite(ctx, "c1", "x@example.com", scope, roles.Admin); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("contributor inviting admin must fail, got %v", err)
	}
}
