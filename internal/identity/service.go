package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memoria.org/internal/ids"
)

// InvitationResolver rebinds pending invitations after signup. Implemented by
// the access service.
type InvitationResolver interface {
	ResolveInvitation(ctx context.Context, email, principalID string) error
}

// Service provides signup, login and the email lookup consumed by the role
// granting endpoint.
type Service struct {
	store    Store
	resolver InvitationResolver
	now      func() time.Time
	tokenTTL time.Duration
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

// WithTokenTTL overrides the access token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService constructs the identity service. The resolver may be nil when no
// invitation flow is wired (tests).
func NewService(store Store, resolver InvitationResolver, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	svc := &Service{
		store:    store,
		resolver: resolver,
		now:      time.Now,
		tokenTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SignUp registers a new account and binds any invitations pending for the
// email to the fresh user id.
func (s *Service) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email is taken", ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	if s.resolver != nil {
		if err := s.resolver.ResolveInvitation(ctx, email, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if user.Status != StatusActive {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	token, err := GenerateToken(user.ID, nil, s.tokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().UTC().Add(s.tokenTTL), nil
}

// GetUserByEmail resolves an email to a user; ErrNotFound when absent. Used
// by the role granting endpoint to validate targets before writing.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindByEmail(ctx, email)
}

// GetUser resolves a user id; ErrNotFound when absent.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}
