// Package profile holds memorial and personal profiles and drives their
// content-approval workflow: draft, pending review, published, archived.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("profile: not found")
	ErrInvalidArgument   = errors.New("profile: invalid argument")
	ErrInvalidTransition = errors.New("profile: invalid transition")
)

// Type discriminates the two profile kinds.
type Type string

const (
	TypeMemorial Type = "memorial"
	TypePersonal Type = "personal"
)

// ParseType validates a profile type string from an external boundary.
func ParseType(raw string) (Type, error) {
	switch Type(strings.TrimSpace(strings.ToLower(raw))) {
	case TypeMemorial:
		return TypeMemorial, nil
	case TypePersonal:
		return TypePersonal, nil
	default:
		return "", fmt.Errorf("%w: unknown profile type %q", ErrInvalidArgument, raw)
	}
}

// Status is the profile's position in the approval workflow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// ParseStatus validates a status string read back from storage.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusPending, StatusPublished, StatusArchived:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, raw)
	}
}

// TimelineEntry is one event in a profile's life story timeline.
type TimelineEntry struct {
	When  time.Time `json:"when"`
	Title string    `json:"title"`
	Body  string    `json:"body,omitempty"`
}

// Photo references an uploaded image; storage itself is external.
type Photo struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Profile is the record moving through the approval workflow. The content
// fields are opaque to the permission and lifecycle logic.
type Profile struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	Type      Type            `json:"type"`
	Status    Status          `json:"status"`
	CreatedBy string          `json:"created_by"`
	Name      string          `json:"name"`
	BirthDate *time.Time      `json:"birth_date,omitempty"`
	DeathDate *time.Time      `json:"death_date,omitempty"`
	Biography string          `json:"biography,omitempty"`
	LifeStory string          `json:"life_story,omitempty"`
	Timeline  []TimelineEntry `json:"timeline,omitempty"`
	Photos    []Photo         `json:"photos,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CompletenessScore is an advisory percentage of filled required fields.
// Surfaced to reviewers before publishing; publishing is never blocked by a
// low score.
func CompletenessScore(p *Profile) int {
	type check struct{ filled bool }
	checks := []check{
		{strings.TrimSpace(p.Name) != ""},
		{p.BirthDate != nil},
		{strings.TrimSpace(p.Biography) != ""},
		{strings.TrimSpace(p.LifeStory) != ""},
		{len(p.Timeline) > 0},
		{len(p.Photos) > 0},
	}
	if p.Type == TypeMemorial {
		checks = append(checks, check{p.DeathDate != nil})
	}
	filled := 0
	for _, c := range checks {
		if c.filled {
			filled++
		}
	}
	return filled * 100 / len(checks)
}

// DraftBuffer carries locally buffered edits into a save. The caller owns the
// buffer's lifecycle; nil fields leave the stored value untouched.
type DraftBuffer struct {
	Name      *string         `json:"name,omitempty"`
	BirthDate *time.Time      `json:"birth_date,omitempty"`
	DeathDate *time.Time      `json:"death_date,omitempty"`
	Biography *string         `json:"biography,omitempty"`
	LifeStory *string         `json:"life_story,omitempty"`
	Timeline  []TimelineEntry `json:"timeline,omitempty"`
	Photos    []Photo         `json:"photos,omitempty"`
}

func (b DraftBuffer) apply(p *Profile) {
	if b.Name != nil {
		p.Name = strings.TrimSpace(*b.Name)
	}
	if b.BirthDate != nil {
		p.BirthDate = b.BirthDate
	}
	if b.DeathDate != nil {
		p.DeathDate = b.DeathDate
	}
	if b.Biography != nil {
		p.Biography = *b.Biography
	}
	if b.LifeStory != nil {
		p.LifeStory = *b.LifeStory
	}
	if b.Timeline != nil {
		p.Timeline = b.Timeline
	}
	if b.Photos != nil {
		p.Photos = b.Photos
	}
}
