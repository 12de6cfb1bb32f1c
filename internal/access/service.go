package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memoria.org/internal/audit"
	"memoria.org/internal/ids"
	"memoria.org/internal/obs"
	"memoria.org/internal/roles"
)

// Service mutates role assignments: grant, revoke, invite, and invitation
// resolution. Every successful mutation appends one audit entry after the
// grant write commits; the two writes are separate, so a crash in between can
// leave the advisory audit log one entry behind.
//
// Nothing guards removal of the last admin grant in a scope. A scope can end
// up with no admin able to grant further roles; callers own that tradeoff.
type Service struct {
	grants GrantStore
	eval   *Evaluator
	rec    *audit.Recorder
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access service.
func NewService(grants GrantStore, eval *Evaluator, rec *audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if grants == nil {
		return nil, errors.New("access: grant store is required")
	}
	if eval == nil {
		return nil, errors.New("access: evaluator is required")
	}
	if rec == nil {
		return nil, errors.New("access: audit recorder is required")
	}
	svc := &Service{grants: grants, eval: eval, rec: rec, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Evaluator exposes the read-only evaluator backing this service.
func (s *Service) Evaluator() *Evaluator {
	return s.eval
}

// authorizeAssign applies the shared rule for grant, revoke and invite: the
// actor's effective role must satisfy admin, or the role in question must be
// within the actor's assignable set.
func (s *Service) authorizeAssign(ctx context.Context, actorID string, scope Scope, role roles.Role) error {
	held, ok, err := s.eval.EffectiveRole(ctx, actorID, scope)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if roles.Satisfies(held, roles.Admin) {
		return nil
	}
	for _, r := range roles.Assignable(held) {
		if r == role {
			return nil
		}
	}
	return ErrPermissionDenied
}

// Grant assigns role to the target principal within scope, replacing any
// existing grant for the same (principal, scope) pair.
func (s *Service) Grant(ctx context.Context, granterID, targetID string, scope Scope, role roles.Role) error {
	granterID = strings.TrimSpace(granterID)
	targetID = strings.TrimSpace(targetID)
	if granterID == "" {
		return ErrUnauthenticated
	}
	if targetID == "" || !scope.valid() {
		return fmt.Errorf("%w: target principal and scope are required", ErrInvalidArgument)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", roles.ErrInvalidRole, role)
	}
	if err := s.authorizeAssign(ctx, granterID, scope, role); err != nil {
		return err
	}
	grant := &Grant{
		ID:          ids.New(),
		PrincipalID: targetID,
		Scope:       scope,
		Role:        role,
		GrantedBy:   granterID,
		GrantedAt:   s.now().UTC(),
	}
	if err := s.grants.Put(ctx, grant); err != nil {
		return err
	}
	obs.IncGrantMutation("grant")
	return s.rec.Record(ctx, audit.Entry{
		Action:      audit.ActionRoleGranted,
		OrgID:       scope.OrgID,
		ProfileID:   scope.ProfileID,
		PrincipalID: targetID,
		ActorID:     granterID,
		Role:        role,
	})
}

// Revoke removes the target's grant within scope. Revoking a grant that does
// not exist succeeds without effect, so two administrators racing on the same
// removal both come back clean.
func (s *Service) Revoke(ctx context.Context, revokerID, targetID string, scope Scope) error {
	revokerID = strings.TrimSpace(revokerID)
	targetID = strings.TrimSpace(targetID)
	if revokerID == "" {
		return ErrUnauthenticated
	}
	if targetID == "" || !scope.valid() {
		return fmt.Errorf("%w: target principal and scope are required", ErrInvalidArgument)
	}
	held, ok, err := s.eval.EffectiveRole(ctx, revokerID, scope)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	existing, err := s.grants.Get(ctx, scope, targetID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !roles.Satisfies(held, roles.Admin) {
		allowed := false
		for _, r := range roles.Assignable(held) {
			if r == existing.Role {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrPermissionDenied
		}
	}
	if err := s.grants.Delete(ctx, scope, targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	obs.IncGrantMutation("revoke")
	return s.rec.Record(ctx, audit.Entry{
		Action:      audit.ActionRoleRemoved,
		OrgID:       scope.OrgID,
		ProfileID:   scope.ProfileID,
		PrincipalID: targetID,
		ActorID:     revokerID,
		Role:        existing.Role,
	})
}

// ListGrants returns the grants for a scope ordered by grant time.
func (s *Service) ListGrants(ctx context.Context, scope Scope) ([]Grant, error) {
	if !scope.valid() {
		return nil, fmt.Errorf("%w: scope is required", ErrInvalidArgument)
	}
	return s.grants.ListByScope(ctx, scope)
}

// Invite creates a pending grant keyed by the invitee's lowercased email,
// to be rebound when an account with that email signs up. Returns the
// invitation id.
func (s *Service) Invite(ctx context.Context, inviterID, email string, scope Scope, role roles.Role) (string, error) {
	inviterID = strings.TrimSpace(inviterID)
	if inviterID == "" {
		return "", ErrUnauthenticated
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidArgument)
	}
	if !scope.valid() {
		return "", fmt.Errorf("%w: scope is required", ErrInvalidArgument)
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", roles.ErrInvalidRole, role)
	}
	if err := s.authorizeAssign(ctx, inviterID, scope, role); err != nil {
		return "", err
	}
	grant := &Grant{
		ID:           ids.New(),
		PrincipalID:  email,
		Scope:        scope,
		Role:         role,
		GrantedBy:    inviterID,
		GrantedAt:    s.now().UTC(),
		Pending:      true,
		InvitedEmail: email,
	}
	if err := s.grants.Put(ctx, grant); err != nil {
		return "", err
	}
	obs.IncGrantMutation("invite")
	if err := s.rec.Record(ctx, audit.Entry{
		Action:      audit.ActionUserInvited,
		OrgID:       scope.OrgID,
		ProfileID:   scope.ProfileID,
		PrincipalID: email,
		ActorID:     inviterID,
		Role:        role,
	}); err != nil {
		return "", err
	}
	return grant.ID, nil
}

// ResolveInvitation rebinds every pending grant for the email to the new
// principal id and clears the pending marker. The original user_invited audit
// entry suffices; no new entry is appended. Resolving an email with no
// pending invitations is a no-op.
func (s *Service) ResolveInvitation(ctx context.Context, email, principalID string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	principalID = strings.TrimSpace(principalID)
	if email == "" || principalID == "" {
		return fmt.Errorf("%w: email and principal id are required", ErrInvalidArgument)
	}
	pending, err := s.grants.ListPendingByEmail(ctx, email)
	if err != nil {
		return err
	}
	for i := range pending {
		grant := pending[i]
		if err := s.grants.Delete(ctx, grant.Scope, grant.PrincipalID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		grant.PrincipalID = principalID
		grant.Pending = false
		if err := s.grants.Put(ctx, &grant); err != nil {
			return err
		}
	}
	return nil
}
