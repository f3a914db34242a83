package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"backoffice.dev/internal/access"
)

type stubStore struct {
	entries []access.AuditEntry
	fail    error
}

func (s *stubStore) AppendAudit(_ context.Context, entry access.AuditEntry) (access.AuditEntry, error) {
	if s.fail != nil {
		return access.AuditEntry{}, s.fail
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *stubStore) ListRecentAudit(_ context.Context, limit int) ([]access.AuditEntry, error) {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func (s *stubStore) ListAuditByIdentity(context.Context, int64, int) ([]access.AuditEntry, error) {
	return nil, nil
}

func (s *stubStore) ListAuditByModule(context.Context, string, int) ([]access.AuditEntry, error) {
	return nil, nil
}

func TestRecordNormalizesAndStamps(t *testing.T) {
	store := &stubStore{}
	when := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	rec, err := NewRecorder(store, WithClock(func() time.Time { return when }))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	id := int64(3)
	entry, err := rec.Record(context.Background(), &id, "create_customer", "customers", "customer 9")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.Action != "CREATE_CUSTOMER" || entry.Module != "CUSTOMERS" {
		t.Fatalf("action/module not uppercased: %+v", entry)
	}
	if !entry.OccurredAt.Equal(when) {
		t.Fatalf("want timestamp %v, got %v", when, entry.OccurredAt)
	}
	if entry.ID == 0 {
		t.Fatal("store id missing")
	}
}

func TestRecordRequiresAction(t *testing.T) {
	rec, err := NewRecorder(&stubStore{})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if _, err := rec.Record(context.Background(), nil, "   ", "CUSTOMERS", ""); err == nil {
		t.Fatal("empty action must be rejected")
	}
}

func TestRecordBestEffortSwallowsStoreFailure(t *testing.T) {
	store := &stubStore{fail: errors.New("disk on fire")}
	rec, err := NewRecorder(store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	// Must not panic and must not surface the error.
	rec.RecordBestEffort(context.Background(), nil, "LOGOUT", "SYSTEM", "")
}

func TestListClamping(t *testing.T) {
	if got := clampLimit(0); got != 100 {
		t.Fatalf("want default 100, got %d", got)
	}
	if got := clampLimit(-5); got != 100 {
		t.Fatalf("want default 100 for negatives, got %d", got)
	}
	if got := clampLimit(9999); got != 100 {
		t.Fatalf("want default 100 above the cap, got %d", got)
	}
	if got := clampLimit(42); got != 42 {
		t.Fatalf("want passthrough 42, got %d", got)
	}
}
