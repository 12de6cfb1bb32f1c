package access

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements GrantStore with in-process concurrency safety. Used by
// tests and by deployments running without a database DSN.
type InMemory struct {
	mu     sync.RWMutex
	grants map[string]Grant // scope key + principal -> grant
}

// NewInMemory creates an empty grant store.
func NewInMemory() *InMemory {
	return &InMemory{grants: make(map[string]Grant)}
}

func grantKey(scope Scope, principalID string) string {
	return scope.OrgID + "\x00" + scope.ProfileID + "\x00" + principalID
}

func (s *InMemory) Get(ctx context.Context, scope Scope, principalID string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantKey(scope, principalID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := grant
	return &out, nil
}

func (s *InMemory) Put(ctx context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey(grant.Scope, grant.PrincipalID)] = *grant
	return nil
}

func (s *InMemory) Delete(ctx context.Context, scope Scope, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey(scope, principalID)
	if _, ok := s.grants[key]; !ok {
		return ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

func (s *InMemory) ListByScope(ctx context.Context, scope Scope) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, grant := range s.grants {
		if grant.Scope == scope {
			out = append(out, grant)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].PrincipalID < out[j].PrincipalID
		}
		return out[i].GrantedAt.Before(out[j].GrantedAt)
	})
	return out, nil
}

func (s *InMemory) ListPendingByEmail(ctx context.Context, email string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, grant := range s.grants {
		if grant.Pending && grant.InvitedEmail == email {
			out = append(out, grant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}
