package access_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/audit"
	"backoffice.dev/internal/migrate"
	"backoffice.dev/internal/store/memory"
)

type fixture struct {
	store *memory.Store
	rec   *audit.Recorder
	svc   *access.Service
	admin *access.Admin
}

// newFixture bootstraps the in-memory store with the builtin roles,
// permission catalog and the default administrator.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	if _, err := migrate.Bootstrap(context.Background(), store); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	rec, err := audit.NewRecorder(store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc, err := access.NewService(store, access.NewSessionRegistry(0), rec)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	admin, err := access.NewAdmin(store)
	if err != nil {
		t.Fatalf("new admin: %v", err)
	}
	return &fixture{store: store, rec: rec, svc: svc, admin: admin}
}

func (f *fixture) roleID(t *testing.T, name string) int64 {
	t.Helper()
	roles, err := f.admin.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	for _, role := range roles {
		if role.Name == name {
			return role.ID
		}
	}
	t.Fatalf("role %s not found", name)
	return 0
}

func (f *fixture) createUser(t *testing.T, login, role string) access.Identity {
	t.Helper()
	identity, err := f.admin.CreateUser(context.Background(), login, "User "+login, login+"@example.com", "s3cret-"+login, f.roleID(t, role))
	if err != nil {
		t.Fatalf("create user %s: %v", login, err)
	}
	return identity
}

func TestLoginSuccessWritesAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "admin", migrate.DefaultAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.ID == "" || session.Login != "admin" {
		t.Fatalf("unexpected session: %+v", session)
	}

	entries, err := f.rec.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want exactly 1 audit entry, got %d", len(entries))
	}
	if entries[0].Action != access.AuditLogin {
		t.Fatalf("want action %s, got %s", access.AuditLogin, entries[0].Action)
	}
	if entries[0].IdentityID == nil || *entries[0].IdentityID != session.IdentityID {
		t.Fatalf("audit entry not attributed to %d: %+v", session.IdentityID, entries[0])
	}

	identity, err := f.svc.CurrentIdentity(ctx, session)
	if err != nil {
		t.Fatalf("current identity: %v", err)
	}
	if identity.RoleName != access.AdministratorRoleName {
		t.Fatalf("want role %s, got %s", access.AdministratorRoleName, identity.RoleName)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	operator := f.createUser(t, "op", "Operator")
	if err := f.admin.DeactivateUser(ctx, operator.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	cases := []struct {
		name     string
		login    string
		password string
	}{
		{"unknown login", "nobody", "whatever"},
		{"wrong password", "admin", "not-the-password"},
		{"inactive account", "op", "s3cret-op"},
		{"empty login", "", "x"},
		{"empty password", "admin", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Login(ctx, tc.login, tc.password); !errors.Is(err, access.ErrInvalidCredentials) {
				t.Fatalf("want ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestFailedPasswordLeavesAuditEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "admin", "wrong"); !errors.Is(err, access.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	entries, err := f.rec.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != access.AuditLoginFailed {
		t.Fatalf("want one LOGIN_FAILED entry, got %+v", entries)
	}

	// Unknown logins must not leave a trace.
	if _, err := f.svc.Login(ctx, "ghost", "wrong"); !errors.Is(err, access.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	entries, _ = f.rec.ListRecent(ctx, 10)
	if len(entries) != 1 {
		t.Fatalf("unknown login must not be audited, got %+v", entries)
	}
}

func TestLogoutDestroysSessionAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "admin", migrate.DefaultAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.svc.Logout(ctx, session)

	if _, ok := f.svc.Sessions().Resolve(session.ID); ok {
		t.Fatal("session survived logout")
	}
	entries, _ := f.rec.ListRecent(ctx, 10)
	if len(entries) != 2 || entries[0].Action != access.AuditLogout {
		t.Fatalf("want LOGOUT on top, got %+v", entries)
	}

	// Double logout is harmless and writes nothing new.
	f.svc.Logout(ctx, session)
	f.svc.Logout(ctx, nil)
}

func TestPermissionChecksAreLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createUser(t, "op", "Operator")
	session, err := f.svc.Login(ctx, "op", "s3cret-op")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if !f.svc.HasPermission(ctx, session, access.ModuleCustomers, access.ActionCreate) {
		t.Fatal("operator should create customers")
	}
	if f.svc.HasPermission(ctx, session, access.ModuleCustomers, access.ActionDelete) {
		t.Fatal("operator must not delete customers")
	}

	// Revoke the grant mid-session: the next check must observe it.
	roleID := f.roleID(t, "Operator")
	if err := f.admin.SetRolePermissions(ctx, roleID, []access.Grant{
		{Module: access.ModuleCustomers, Action: access.ActionView},
	}); err != nil {
		t.Fatalf("set role permissions: %v", err)
	}
	if f.svc.HasPermission(ctx, session, access.ModuleCustomers, access.ActionCreate) {
		t.Fatal("revoked grant still honored")
	}
	if err := f.svc.Require(ctx, session, access.ModuleCustomers, access.ActionCreate); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
}

func TestClosedWorldDeny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "admin", migrate.DefaultAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if f.svc.HasPermission(ctx, session, "NO_SUCH_MODULE", access.ActionView) {
		t.Fatal("unknown module must be denied")
	}
	if f.svc.HasPermission(ctx, session, "", "") {
		t.Fatal("empty grant must be denied")
	}
	if f.svc.HasPermission(ctx, nil, access.ModuleCustomers, access.ActionView) {
		t.Fatal("nil session must be denied")
	}
}

func TestDeactivationRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	operator := f.createUser(t, "op", "Operator")
	session, err := f.svc.Login(ctx, "op", "s3cret-op")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := f.svc.RequireActive(ctx, session); err != nil {
		t.Fatalf("require active: %v", err)
	}

	if err := f.admin.DeactivateUser(ctx, operator.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.svc.RequireActive(ctx, session); !errors.Is(err, access.ErrSessionRevoked) {
		t.Fatalf("want ErrSessionRevoked, got %v", err)
	}
	if _, ok := f.svc.Sessions().Resolve(session.ID); ok {
		t.Fatal("session must be torn down after deactivation")
	}
	if _, err := f.svc.ListPermissions(ctx, session); !errors.Is(err, access.ErrSessionRevoked) {
		t.Fatalf("want ErrSessionRevoked, got %v", err)
	}
}

func TestLastAdministratorGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adminIdentity, err := f.store.FindIdentityByLogin(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}

	if err := f.admin.DeactivateUser(ctx, adminIdentity.ID); !errors.Is(err, access.ErrLastAdministrator) {
		t.Fatalf("want ErrLastAdministrator, got %v", err)
	}
	if err := f.admin.PurgeUser(ctx, adminIdentity.ID); !errors.Is(err, access.ErrLastAdministrator) {
		t.Fatalf("want ErrLastAdministrator on purge, got %v", err)
	}

	// A second active administrator lifts the guard.
	second := f.createUser(t, "root2", "Administrator")
	if err := f.admin.DeactivateUser(ctx, adminIdentity.ID); err != nil {
		t.Fatalf("deactivate with backup admin: %v", err)
	}

	// Now root2 is the last one again.
	if err := f.admin.DeactivateUser(ctx, second.ID); !errors.Is(err, access.ErrLastAdministrator) {
		t.Fatalf("want ErrLastAdministrator for the remaining admin, got %v", err)
	}
}

func TestSoftDeleteManglesAndRestoresLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	operator := f.createUser(t, "jdoe", "Operator")
	if err := f.admin.DeactivateUser(ctx, operator.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := f.store.GetIdentity(ctx, operator.ID)
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if got.Active {
		t.Fatal("identity still active")
	}
	wantLogin := "jdoe_DELETED_" + strconv.FormatInt(operator.ID, 10)
	if got.Login != wantLogin {
		t.Fatalf("want mangled login %q, got %q", wantLogin, got.Login)
	}
	if _, err := f.store.FindIdentityByLogin(ctx, "jdoe"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("mangled login must free the original, got %v", err)
	}

	// The freed login can be taken by a new account.
	if _, err := f.admin.CreateUser(ctx, "jdoe", "John Doe II", "jdoe2@example.com", "another-pass", f.roleID(t, "Viewer")); err != nil {
		t.Fatalf("reuse freed login: %v", err)
	}

	// Reactivation now collides with the new holder.
	if err := f.admin.ReactivateUser(ctx, operator.ID); err == nil {
		t.Fatal("reactivation should conflict with the new login holder")
	} else {
		var conflict *access.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("want ConflictError, got %v", err)
		}
	}
}

func TestReactivateRestoresExactLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	operator := f.createUser(t, "kate", "Operator")
	if err := f.admin.DeactivateUser(ctx, operator.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.admin.ReactivateUser(ctx, operator.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, err := f.store.FindIdentityByLogin(ctx, "kate")
	if err != nil {
		t.Fatalf("find after reactivate: %v", err)
	}
	if !got.Active || got.Login != "kate" {
		t.Fatalf("want active kate, got %+v", got)
	}
}

func TestPurgeRemovesAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	operator := f.createUser(t, "op", "Operator")
	if _, err := f.svc.Login(ctx, "op", "s3cret-op"); err != nil {
		t.Fatalf("login: %v", err)
	}
	entries, _ := f.rec.ListByIdentity(ctx, operator.ID, 10)
	if len(entries) == 0 {
		t.Fatal("expected audit entries before purge")
	}

	if err := f.admin.PurgeUser(ctx, operator.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := f.store.GetIdentity(ctx, operator.ID); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("identity must be gone, got %v", err)
	}
	entries, _ = f.rec.ListByIdentity(ctx, operator.ID, 10)
	if len(entries) != 0 {
		t.Fatalf("audit entries must be purged, got %+v", entries)
	}
}

