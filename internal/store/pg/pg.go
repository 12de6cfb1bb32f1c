package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"memoria.org/internal/access"
	"memoria.org/internal/audit"
	"memoria.org/internal/identity"
	"memoria.org/internal/profile"
)

const pgErrUniqueViolation = "23505"

// Store owns the PostgreSQL connection pool. Each domain gets its own typed
// view over the shared pool.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Grants returns the permission grant store.
func (s *Store) Grants() access.GrantStore { return &grantStore{db: s.db} }

// Profiles returns the profile store.
func (s *Store) Profiles() profile.Store { return &profileStore{db: s.db} }

// Users returns the user account store.
func (s *Store) Users() identity.Store { return &userStore{db: s.db} }

// Audit returns the audit log store.
func (s *Store) Audit() audit.Store { return &auditStore{db: s.db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
