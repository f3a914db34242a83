// Package audit appends immutable entries for every authentication and
// state-changing action, and serves the newest-first read views behind the
// audit screens.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/obs"
)

// Recorder writes audit entries through the store. The best-effort path is
// the default for business mutations: a failed audit write is reported on
// the operational log and metrics, never to the user whose action
// succeeded.
type Recorder struct {
	store access.AuditStore
	now   func() time.Time
}

// Option configures Recorder.
type Option func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store access.AuditStore, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends one entry and returns it with the store-assigned id and
// timestamp. identityID is nil for system actions.
func (r *Recorder) Record(ctx context.Context, identityID *int64, action, module, details string) (access.AuditEntry, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return access.AuditEntry{}, errors.New("audit: action is required")
	}
	entry := access.AuditEntry{
		IdentityID: identityID,
		Action:     action,
		Module:     strings.ToUpper(strings.TrimSpace(module)),
		Details:    details,
		OccurredAt: r.now().UTC(),
	}
	return r.store.AppendAudit(ctx, entry)
}

// RecordBestEffort is Record with the failure swallowed into the
// operational log. Logout and every CRUD mutation go through here so an
// ailing audit table never blocks legitimate work.
func (r *Recorder) RecordBestEffort(ctx context.Context, identityID *int64, action, module, details string) {
	if _, err := r.Record(ctx, identityID, action, module, details); err != nil {
		obs.AuditWriteFailed()
		logFailure(identityID, action, module, err)
	}
}

// ListRecent returns the latest entries across all identities.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]access.AuditEntry, error) {
	return r.store.ListRecentAudit(ctx, clampLimit(limit))
}

// ListByIdentity returns the latest entries of one identity.
func (r *Recorder) ListByIdentity(ctx context.Context, identityID int64, limit int) ([]access.AuditEntry, error) {
	return r.store.ListAuditByIdentity(ctx, identityID, clampLimit(limit))
}

// ListByModule returns the latest entries of one module.
func (r *Recorder) ListByModule(ctx context.Context, module string, limit int) ([]access.AuditEntry, error) {
	return r.store.ListAuditByModule(ctx, strings.ToUpper(strings.TrimSpace(module)), clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func logFailure(identityID *int64, action, module string, err error) {
	event := map[string]any{
		"type":  "ops",
		"event": "audit_write_failed",
		"error": err.Error(),
	}
	if identityID != nil {
		event["identity_id"] = *identityID
	}
	if action != "" {
		event["action"] = action
	}
	if module != "" {
		event["module"] = module
	}
	obs.Event(event)
}
