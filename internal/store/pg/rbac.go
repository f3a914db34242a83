package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"backoffice.dev/internal/access"
)

func (s *Store) CreateRole(ctx context.Context, name, description string) (access.Role, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var (
		role access.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		insert into roles (name, description)
		values ($1, $2)
		returning id, name, description, created_at
	`, name, nullIfEmpty(description)).Scan(&role.ID, &role.Name, &desc, &role.CreatedAt)
	if err != nil {
		return access.Role{}, mapError(err)
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]access.Role, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at
		from roles
		order by lower(name)
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		var (
			role access.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &role.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if desc.Valid {
			role.Description = desc.String
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return roles, nil
}

func (s *Store) GetRole(ctx context.Context, id int64) (access.Role, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var (
		role access.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at
		from roles
		where id = $1
	`, id).Scan(&role.ID, &role.Name, &desc, &role.CreatedAt)
	if err != nil {
		return access.Role{}, mapError(err)
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id int64, upd access.RoleUpdate) (access.Role, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return access.Role{}, mapError(err)
		}
		if err := requireAffected(res); err != nil {
			return access.Role{}, err
		}
	}
	return s.GetRole(ctx, id)
}

// DeleteRole fails with ErrConflict while identities still reference the
// role; the foreign key enforces that.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		mapped := mapError(err)
		if errors.Is(mapped, access.ErrNotFound) {
			// FK violation from users.role_id: the role is in use.
			return access.ErrConflict
		}
		return mapped
	}
	return requireAffected(res)
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []access.Permission) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (module, action, description)
			values ($1, $2, $3)
			on conflict (module, action) do nothing
		`, p.Module, p.Action, nullIfEmpty(p.Description)); err != nil {
			return mapError(err)
		}
	}
	return mapError(tx.Commit())
}

func (s *Store) ListPermissions(ctx context.Context) ([]access.Permission, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, module, action, coalesce(description, '')
		from permissions
		order by module, action
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var perms []access.Permission
	for rows.Next() {
		var p access.Permission
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &p.Description); err != nil {
			return nil, mapError(err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return perms, nil
}

// SetRolePermissions replaces the role's grant set atomically.
func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, grants []access.Grant) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return mapError(err)
	}
	for _, g := range grants {
		var permID int64
		err := tx.QueryRowContext(ctx, `
			select id from permissions where module = $1 and action = $2
		`, g.Module, g.Action).Scan(&permID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: permission %s/%s not in catalog", access.ErrNotFound, g.Module, g.Action)
			}
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return mapError(err)
		}
	}
	return mapError(tx.Commit())
}

func (s *Store) RolePermissions(ctx context.Context, roleID int64) ([]access.Grant, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var exists int
	if err := s.db.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.module, p.action
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.module, p.action
	`, roleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var grants []access.Grant
	for rows.Next() {
		var g access.Grant
		if err := rows.Scan(&g.Module, &g.Action); err != nil {
			return nil, mapError(err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return grants, nil
}

func (s *Store) RoleHasPermission(ctx context.Context, roleID int64, module, action string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var granted bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1
			from role_permissions rp
			join permissions p on p.id = rp.permission_id
			where rp.role_id = $1 and p.module = $2 and p.action = $3
		)
	`, roleID, module, action).Scan(&granted)
	if err != nil {
		return false, mapError(err)
	}
	return granted, nil
}
