package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memoria.org/internal/identity"
)

type userStore struct {
	db *sql.DB
}

var _ identity.Store = (*userStore)(nil)

const userColumns = `id, email, password_hash, status, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *identity.User) error {
	if u == nil {
		return fmt.Errorf("%w: user is required", identity.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Status, u.CreatedAt, u.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("%w: email %s", identity.ErrAlreadyExists, u.Email)
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where id = $1
	`, id)
	return scanUser(row, id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where email = $1
	`, email)
	return scanUser(row, email)
}

func scanUser(row rowScanner, key string) (*identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", identity.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
