package audit

import (
	"context"
	"sync"

	"memoria.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and by deployments running without a database DSN.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemory creates an empty append-only log.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemory) ListByOrg(ctx context.Context, orgID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].OrgID == orgID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// All returns a copy of every entry in append order. Test helper.
func (s *InMemory) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
