package pg

import (
	"context"
	"database/sql"
	"fmt"

	"memoria.org/internal/audit"
	"memoria.org/internal/roles"
)

type auditStore struct {
	db *sql.DB
}

var _ audit.Store = (*auditStore)(nil)

const auditColumns = `id, action, org_id, profile_id, principal_id, actor_id, role, comment, occurred_at`

func (s *auditStore) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return fmt.Errorf("audit: entry is required")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (`+auditColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.Action, entry.OrgID, entry.ProfileID, entry.PrincipalID,
		entry.ActorID, string(entry.Role), entry.Comment, entry.OccurredAt)
	return err
}

func (s *auditStore) ListByOrg(ctx context.Context, orgID string, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+auditColumns+`
		from audit_log
		where org_id = $1
		order by occurred_at desc, id desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e    audit.Entry
			role string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.OrgID, &e.ProfileID, &e.PrincipalID,
			&e.ActorID, &role, &e.Comment, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Role = roles.Role(role)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
