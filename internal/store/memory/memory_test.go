package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"backoffice.dev/internal/access"
)

func seedRole(t *testing.T, s *Store) int64 {
	t.Helper()
	role, err := s.CreateRole(context.Background(), "Staff", "")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	return role.ID
}

func TestConcurrentCreatesAssignUniqueIDs(t *testing.T) {
	s := New()
	roleID := seedRole(t, s)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			identity, err := s.CreateIdentity(ctx, fmt.Sprintf("user%02d", n), "User", "", "hash", roleID)
			if err != nil {
				errs <- err
				return
			}
			ids <- identity.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("want %d identities, got %d", workers, len(seen))
	}
}

func TestAuditIDsIncreaseAndReadNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := access.AuditEntry{
			Action:     "PING",
			Module:     access.ModuleSystem,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}
		got, err := s.AppendAudit(ctx, entry)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if got.ID != int64(i+1) {
			t.Fatalf("want id %d, got %d", i+1, got.ID)
		}
	}

	entries, err := s.ListRecentAudit(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID >= entries[i-1].ID {
			t.Fatalf("entries not newest-first: %+v", entries)
		}
	}
}

func TestAppendAuditRejectsUnknownIdentity(t *testing.T) {
	s := New()
	missing := int64(42)
	_, err := s.AppendAudit(context.Background(), access.AuditEntry{
		IdentityID: &missing,
		Action:     "LOGIN",
		Module:     access.ModuleSystem,
	})
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRoleNameResolvedOnReads(t *testing.T) {
	s := New()
	roleID := seedRole(t, s)
	ctx := context.Background()

	created, err := s.CreateIdentity(ctx, "amy", "Amy", "amy@example.com", "hash", roleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.RoleName != "Staff" {
		t.Fatalf("want role name on create, got %+v", created)
	}
	got, err := s.FindIdentityByLogin(ctx, "AMY")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.RoleName != "Staff" || got.ID != created.ID {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestReactivateStripsOnlyDeactivationSuffix(t *testing.T) {
	s := New()
	roleID := seedRole(t, s)
	ctx := context.Background()

	// A login that legitimately contains the marker text.
	odd, err := s.CreateIdentity(ctx, "x_DELETED_y", "Odd", "", "hash", roleID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.ReactivateIdentity(ctx, odd.ID); err != nil {
		t.Fatalf("reactivate active identity: %v", err)
	}
	got, err := s.GetIdentity(ctx, odd.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Login != "x_DELETED_y" {
		t.Fatalf("login must survive untouched, got %q", got.Login)
	}

	if err := s.DeactivateIdentity(ctx, odd.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ = s.GetIdentity(ctx, odd.ID)
	want := fmt.Sprintf("x_DELETED_y_DELETED_%d", odd.ID)
	if got.Login != want {
		t.Fatalf("want mangled login %q, got %q", want, got.Login)
	}
	if err := s.ReactivateIdentity(ctx, odd.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, _ = s.GetIdentity(ctx, odd.ID)
	if got.Login != "x_DELETED_y" || !got.Active {
		t.Fatalf("want original login back, got %+v", got)
	}
}

func TestListIdentitiesOrderedAndWindowed(t *testing.T) {
	s := New()
	roleID := seedRole(t, s)
	ctx := context.Background()

	for _, name := range []string{"zoe", "adam", "mia"} {
		if _, err := s.CreateIdentity(ctx, name, name, "", "hash", roleID); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	identities, err := s.ListIdentities(ctx, access.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(identities) != 2 || identities[0].Name != "adam" || identities[1].Name != "mia" {
		t.Fatalf("unexpected ordering: %+v", identities)
	}
}
