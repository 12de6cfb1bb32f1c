package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"memoria.org/internal/access"
	"memoria.org/internal/profile"
)

type profileStore struct {
	db *sql.DB
}

var _ profile.Store = (*profileStore)(nil)

const profileColumns = `id, org_id, type, status, created_by, name, birth_date, death_date,
	biography, life_story, timeline, photos, created_at, updated_at`

func (s *profileStore) Create(ctx context.Context, p *profile.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile is required", profile.ErrInvalidArgument)
	}
	timeline, photos, err := encodeContent(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into profiles (`+profileColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.OrgID, string(p.Type), string(p.Status), p.CreatedBy, p.Name,
		p.BirthDate, p.DeathDate, p.Biography, p.LifeStory, timeline, photos,
		p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *profileStore) Find(ctx context.Context, id string) (*profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+profileColumns+`
		from profiles
		where id = $1
	`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", profile.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetStatus is a single-row compare-and-set: the update applies only when the
// stored status still matches from.
func (s *profileStore) SetStatus(ctx context.Context, id string, from, to profile.Status) error {
	res, err := s.db.ExecContext(ctx, `
		update profiles
		set status = $3, updated_at = now()
		where id = $1 and status = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from profiles where id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: profile %s", profile.ErrNotFound, id)
	}
	return fmt.Errorf("%w: profile %s is no longer %s", profile.ErrInvalidTransition, id, from)
}

func (s *profileStore) UpdateContent(ctx context.Context, p *profile.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile is required", profile.ErrInvalidArgument)
	}
	timeline, photos, err := encodeContent(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update profiles
		set name = $2, birth_date = $3, death_date = $4, biography = $5,
		    life_story = $6, timeline = $7, photos = $8, updated_at = $9
		where id = $1
	`, p.ID, p.Name, p.BirthDate, p.DeathDate, p.Biography, p.LifeStory,
		timeline, photos, p.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: profile %s", profile.ErrNotFound, p.ID)
	}
	return nil
}

func (s *profileStore) ListByOrg(ctx context.Context, orgID string) ([]*profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+profileColumns+`
		from profiles
		where org_id = $1
		order by created_at, id
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreatorOf reports access.ErrNotFound so the permission evaluator can match
// on its own sentinel.
func (s *profileStore) CreatorOf(ctx context.Context, profileID string) (string, error) {
	var creator string
	err := s.db.QueryRowContext(ctx, `select created_by from profiles where id = $1`, profileID).Scan(&creator)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: profile %s", access.ErrNotFound, profileID)
	}
	if err != nil {
		return "", err
	}
	return creator, nil
}

func encodeContent(p *profile.Profile) ([]byte, []byte, error) {
	timeline, err := json.Marshal(p.Timeline)
	if err != nil {
		return nil, nil, fmt.Errorf("encode timeline: %w", err)
	}
	photos, err := json.Marshal(p.Photos)
	if err != nil {
		return nil, nil, fmt.Errorf("encode photos: %w", err)
	}
	return timeline, photos, nil
}

func scanProfile(row rowScanner) (*profile.Profile, error) {
	var (
		p        profile.Profile
		typ      string
		status   string
		timeline []byte
		photos   []byte
	)
	err := row.Scan(&p.ID, &p.OrgID, &typ, &status, &p.CreatedBy, &p.Name,
		&p.BirthDate, &p.DeathDate, &p.Biography, &p.LifeStory,
		&timeline, &photos, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = profile.Type(typ)
	p.Status = profile.Status(status)
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &p.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &p.Photos); err != nil {
			return nil, fmt.Errorf("decode photos: %w", err)
		}
	}
	return &p, nil
}
