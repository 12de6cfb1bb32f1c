package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memoria.org/internal/access"
	"memoria.org/internal/roles"
)

type grantStore struct {
	db *sql.DB
}

var _ access.GrantStore = (*grantStore)(nil)

const grantColumns = `id, principal_id, org_id, profile_id, role, granted_by, granted_at, pending, invited_email`

func (s *grantStore) Get(ctx context.Context, scope access.Scope, principalID string) (*access.Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+grantColumns+`
		from permission_grants
		where org_id = $1 and profile_id = $2 and principal_id = $3
	`, scope.OrgID, scope.ProfileID, principalID)
	grant, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: grant for %s", access.ErrNotFound, principalID)
	}
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *grantStore) Put(ctx context.Context, grant *access.Grant) error {
	if grant == nil {
		return fmt.Errorf("%w: grant is required", access.ErrInvalidArgument)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into permission_grants (`+grantColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		on conflict (org_id, profile_id, principal_id) do update
		set id = excluded.id,
		    role = excluded.role,
		    granted_by = excluded.granted_by,
		    granted_at = excluded.granted_at,
		    pending = excluded.pending,
		    invited_email = excluded.invited_email
	`, grant.ID, grant.PrincipalID, grant.Scope.OrgID, grant.Scope.ProfileID,
		string(grant.Role), grant.GrantedBy, grant.GrantedAt, grant.Pending, grant.InvitedEmail)
	return err
}

func (s *grantStore) Delete(ctx context.Context, scope access.Scope, principalID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from permission_grants
		where org_id = $1 and profile_id = $2 and principal_id = $3
	`, scope.OrgID, scope.ProfileID, principalID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: grant for %s", access.ErrNotFound, principalID)
	}
	return nil
}

func (s *grantStore) ListByScope(ctx context.Context, scope access.Scope) ([]access.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+grantColumns+`
		from permission_grants
		where org_id = $1 and profile_id = $2
		order by granted_at, principal_id
	`, scope.OrgID, scope.ProfileID)
	if err != nil {
		return nil, err
	}
	return collectGrants(rows)
}

func (s *grantStore) ListPendingByEmail(ctx context.Context, email string) ([]access.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+grantColumns+`
		from permission_grants
		where pending and invited_email = $1
		order by granted_at
	`, email)
	if err != nil {
		return nil, err
	}
	return collectGrants(rows)
}

func scanGrant(row rowScanner) (*access.Grant, error) {
	var (
		g    access.Grant
		role string
	)
	err := row.Scan(&g.ID, &g.PrincipalID, &g.Scope.OrgID, &g.Scope.ProfileID,
		&role, &g.GrantedBy, &g.GrantedAt, &g.Pending, &g.InvitedEmail)
	if err != nil {
		return nil, err
	}
	g.Role = roles.Role(role)
	return &g, nil
}

func collectGrants(rows *sql.Rows) ([]access.Grant, error) {
	defer rows.Close()
	var result []access.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
