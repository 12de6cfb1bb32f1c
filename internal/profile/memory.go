package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"memoria.org/internal/access"
	"memoria.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and by deployments running without a database DSN.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemory creates an empty profile store.
func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[string]*Profile)}
}

func (s *InMemory) Create(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) SetStatus(ctx context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != from {
		return ErrInvalidTransition
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) UpdateContent(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.profiles[p.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Name = p.Name
	stored.BirthDate = p.BirthDate
	stored.DeathDate = p.DeathDate
	stored.Biography = p.Biography
	stored.LifeStory = p.LifeStory
	stored.Timeline = append([]TimelineEntry(nil), p.Timeline...)
	stored.Photos = append([]Photo(nil), p.Photos...)
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) ListByOrg(ctx context.Context, orgID string) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Profile
	for _, p := range s.profiles {
		if p.OrgID == orgID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CreatorOf(ctx context.Context, profileID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return "", access.ErrNotFound
	}
	return p.CreatedBy, nil
}
