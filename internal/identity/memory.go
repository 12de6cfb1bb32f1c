package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// InMemory is a Store backed by maps. Used in tests and when no database is
// configured.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

// NewInMemory returns an empty in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (m *InMemory) Create(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" || u.Email == "" {
		return fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}
	email := strings.ToLower(u.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrAlreadyExists, u.ID)
	}
	if _, ok := m.byEmail[email]; ok {
		return fmt.Errorf("%w: email %s", ErrAlreadyExists, email)
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[email] = u.ID
	return nil
}

func (m *InMemory) Find(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (m *InMemory) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: email %s", ErrNotFound, email)
	}
	cp := *m.byID[id]
	return &cp, nil
}
