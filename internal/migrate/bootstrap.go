package migrate

import (
	"context"
	"errors"
	"fmt"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/credential"
)

// Default administrator credentials created on first bootstrap. The
// startup log warns until the password is rotated.
const (
	DefaultAdminLogin    = "admin"
	DefaultAdminPassword = "admin123"
)

var builtinRoles = []struct {
	name        string
	description string
	grants      []access.Grant
}{
	{
		name:        access.AdministratorRoleName,
		description: "Full access to every module",
		grants:      allGrants(),
	},
	{
		name:        "Operator",
		description: "Day-to-day record keeping without user management",
		grants: []access.Grant{
			{Module: access.ModuleCustomers, Action: access.ActionView},
			{Module: access.ModuleCustomers, Action: access.ActionCreate},
			{Module: access.ModuleCustomers, Action: access.ActionEdit},
			{Module: access.ModuleCustomers, Action: access.ActionExport},
			{Module: access.ModuleProducts, Action: access.ActionView},
			{Module: access.ModuleProducts, Action: access.ActionCreate},
			{Module: access.ModuleProducts, Action: access.ActionEdit},
			{Module: access.ModuleProducts, Action: access.ActionExport},
			{Module: access.ModuleDashboard, Action: access.ActionView},
		},
	},
	{
		name:        "Viewer",
		description: "Read-only access to records and the dashboard",
		grants: []access.Grant{
			{Module: access.ModuleCustomers, Action: access.ActionView},
			{Module: access.ModuleCustomers, Action: access.ActionExport},
			{Module: access.ModuleProducts, Action: access.ActionView},
			{Module: access.ModuleProducts, Action: access.ActionExport},
			{Module: access.ModuleDashboard, Action: access.ActionView},
		},
	},
}

func allGrants() []access.Grant {
	grants := make([]access.Grant, 0, len(access.BuiltinPermissions))
	for _, p := range access.BuiltinPermissions {
		grants = append(grants, access.Grant{Module: p.Module, Action: p.Action})
	}
	return grants
}

// Bootstrap ensures the permission catalog, the three built-in roles with
// their grants, and a default administrator account. It is idempotent:
// existing roles keep their grant sets and an existing admin login is
// left untouched. Returns true when the default administrator was
// created this run, so callers can log the rotate-credentials warning.
func Bootstrap(ctx context.Context, store access.Store) (bool, error) {
	if err := store.EnsurePermissions(ctx, access.BuiltinPermissions); err != nil {
		return false, fmt.Errorf("ensure permissions: %w", err)
	}

	roleIDs := make(map[string]int64, len(builtinRoles))
	existing, err := store.ListRoles(ctx)
	if err != nil {
		return false, err
	}
	for _, role := range existing {
		roleIDs[role.Name] = role.ID
	}
	for _, builtin := range builtinRoles {
		if _, ok := roleIDs[builtin.name]; ok {
			continue
		}
		role, err := store.CreateRole(ctx, builtin.name, builtin.description)
		if err != nil {
			return false, fmt.Errorf("create role %s: %w", builtin.name, err)
		}
		if err := store.SetRolePermissions(ctx, role.ID, builtin.grants); err != nil {
			return false, fmt.Errorf("grant role %s: %w", builtin.name, err)
		}
		roleIDs[builtin.name] = role.ID
	}

	if _, err := store.FindIdentityByLogin(ctx, DefaultAdminLogin); err == nil {
		return false, nil
	} else if !errors.Is(err, access.ErrNotFound) {
		return false, err
	}

	hash, err := credential.Hash(DefaultAdminPassword)
	if err != nil {
		return false, err
	}
	if _, err := store.CreateIdentity(ctx, DefaultAdminLogin, "Administrator", "", hash, roleIDs[access.AdministratorRoleName]); err != nil {
		return false, fmt.Errorf("create default administrator: %w", err)
	}
	return true, nil
}
