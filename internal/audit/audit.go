// Package audit records role grants, revocations and profile lifecycle
// transitions in an append-only log. Entries are written after the primary
// mutation succeeds and are never mutated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"memoria.org/internal/ids"
	"memoria.org/internal/obs"
	"memoria.org/internal/roles"
)

// Action kinds appended by the access and profile services.
const (
	ActionRoleGranted = "role_granted"
	ActionRoleRemoved = "role_removed"
	ActionUserInvited = "user_invited"
	ActionSubmit      = "submit"
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionArchive     = "archive"
)

// Entry is a single immutable audit record.
type Entry struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	OrgID       string     `json:"org_id"`
	ProfileID   string     `json:"profile_id,omitempty"`
	PrincipalID string     `json:"principal_id"`
	ActorID     string     `json:"actor_id"`
	Role        roles.Role `json:"role,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Store appends and lists immutable entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]Entry, error)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so appended
// entries can be correlated with HTTP request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder persists entries through a Store and mirrors each one as a
// structured JSON log line. The store write and the log line are independent;
// a failed store append is returned and nothing is logged.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder wraps a Store. The clock override is for tests.
func NewRecorder(store Store, now func() time.Time) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now}, nil
}

// Record appends the entry, stamping OccurredAt when unset.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit: action is required")
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		return err
	}
	r.mirror(ctx, entry)
	return nil
}

// ListByOrg returns recent entries for display, newest first.
func (r *Recorder) ListByOrg(ctx context.Context, orgID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.store.ListByOrg(ctx, orgID, limit)
}

func (r *Recorder) mirror(ctx context.Context, entry Entry) {
	line := map[string]any{
		"ts":    entry.OccurredAt.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": entry.Action,
		"entry": entry,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}
