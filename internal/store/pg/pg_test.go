package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"memoria.org/internal/access"
	"memoria.org/internal/audit"
	"memoria.org/internal/identity"
	"memoria.org/internal/profile"
	"memoria.org/internal/roles"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestGrantGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select .* from permission_grants").
		WithArgs("u-ozil", "", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Grants().Get(context.Background(), access.Scope{OrgID: "u-ozil"}, "user-1")
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGrantPutUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	granted := time.Now().UTC()
	mock.ExpectExec("insert into permission_grants").
		WithArgs("g1", "user-1", "u-ozil", "", "editor", "admin-1", granted, false, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Grants().Put(context.Background(), &access.Grant{
		ID:          "g1",
		PrincipalID: "user-1",
		Scope:       access.Scope{OrgID: "u-ozil"},
		Role:        roles.Editor,
		GrantedBy:   "admin-1",
		GrantedAt:   granted,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGrantDeleteMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from permission_grants").
		WithArgs("u-ozil", "", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Grants().Delete(context.Background(), access.Scope{OrgID: "u-ozil"}, "user-1")
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantListPendingByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	granted := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "principal_id", "org_id", "profile_id", "role",
		"granted_by", "granted_at", "pending", "invited_email"}).
		AddRow("g1", "bob@example.com", "u-ozil", "", "editor", "admin-1", granted, true, "bob@example.com")
	mock.ExpectQuery("select .* from permission_grants").
		WithArgs("bob@example.com").
		WillReturnRows(rows)

	grants, err := store.Grants().ListPendingByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("ListPendingByEmail: %v", err)
	}
	if len(grants) != 1 || !grants[0].Pending || grants[0].Role != roles.Editor {
		t.Fatalf("grants = %+v", grants)
	}
}

func TestSetStatusConflictWhenRowMoved(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update profiles").
		WithArgs("p1", "pending", "published").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.Profiles().SetStatus(context.Background(), "p1", profile.StatusPending, profile.StatusPublished)
	if !errors.Is(err, profile.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetStatusMissingProfile(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update profiles").
		WithArgs("p1", "draft", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.Profiles().SetStatus(context.Background(), "p1", profile.StatusDraft, profile.StatusPending)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatorOfReturnsAccessNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select created_by from profiles").
		WithArgs("p-missing").
		WillReturnRows(sqlmock.NewRows([]string{"created_by"}))

	_, err := store.Profiles().CreatorOf(context.Background(), "p-missing")
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected access.ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	now := time.Now().UTC()
	err := store.Users().Create(context.Background(), &identity.User{
		ID:        "u1",
		Email:     "dana@example.com",
		Status:    identity.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if !errors.Is(err, identity.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAuditAppendAndList(t *testing.T) {
	store, mock := newMockStore(t)
	occurred := time.Now().UTC()
	mock.ExpectExec("insert into audit_log").
		WithArgs("a1", audit.ActionRoleGranted, "u-ozil", "", "user-1", "admin-1", "editor", "", occurred).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Audit().Append(context.Background(), &audit.Entry{
		ID:          "a1",
		Action:      audit.ActionRoleGranted,
		OrgID:       "u-ozil",
		PrincipalID: "user-1",
		ActorID:     "admin-1",
		Role:        roles.Editor,
		OccurredAt:  occurred,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := sqlmock.NewRows([]string{"id", "action", "org_id", "profile_id", "principal_id",
		"actor_id", "role", "comment", "occurred_at"}).
		AddRow("a1", audit.ActionRoleGranted, "u-ozil", "", "user-1", "admin-1", "editor", "", occurred)
	mock.ExpectQuery("select .* from audit_log").
		WithArgs("u-ozil", 50).
		WillReturnRows(rows)

	entries, err := store.Audit().ListByOrg(context.Background(), "u-ozil", 50)
	if err != nil {
		t.Fatalf("ListByOrg: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != audit.ActionRoleGranted {
		t.Fatalf("entries = %+v", entries)
	}
}
