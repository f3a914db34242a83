package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"backoffice.dev/internal/access"
)

const identityColumns = `
	u.id, u.login, u.name, u.email, u.password_hash, u.role_id, r.name,
	u.active, u.first_access, u.last_login_at, u.created_at`

func scanIdentity(row interface{ Scan(...any) error }) (access.Identity, error) {
	var (
		identity  access.Identity
		email     sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&identity.ID, &identity.Login, &identity.Name, &email,
		&identity.PasswordHash, &identity.RoleID, &identity.RoleName,
		&identity.Active, &identity.FirstAccess, &lastLogin, &identity.CreatedAt,
	)
	if err != nil {
		return access.Identity{}, err
	}
	if email.Valid {
		identity.Email = email.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		identity.LastLoginAt = &t
	}
	return identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, login, name, email, passwordHash string, roleID int64) (access.Identity, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into users (login, name, email, password_hash, role_id, active, first_access)
		values ($1, $2, $3, $4, $5, true, true)
		returning id
	`, login, name, nullIfEmpty(email), passwordHash, roleID).Scan(&id)
	if err != nil {
		return access.Identity{}, mapError(err)
	}
	return s.getIdentity(ctx, s.db, id)
}

func (s *Store) GetIdentity(ctx context.Context, id int64) (access.Identity, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.getIdentity(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getIdentity(ctx context.Context, q querier, id int64) (access.Identity, error) {
	identity, err := scanIdentity(q.QueryRowContext(ctx, `
		select `+identityColumns+`
		from users u
		join roles r on r.id = u.role_id
		where u.id = $1
	`, id))
	if err != nil {
		return access.Identity{}, mapError(err)
	}
	return identity, nil
}

func (s *Store) FindIdentityByLogin(ctx context.Context, login string) (access.Identity, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	identity, err := scanIdentity(s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from users u
		join roles r on r.id = u.role_id
		where lower(u.login) = lower($1)
	`, login))
	if err != nil {
		return access.Identity{}, mapError(err)
	}
	return identity, nil
}

func (s *Store) ListIdentities(ctx context.Context, filter access.ListFilter) ([]access.Identity, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select `+identityColumns+`
		from users u
		join roles r on r.id = u.role_id
		where ($1 = '' or u.name ilike '%'||$1||'%' or u.login ilike '%'||$1||'%' or u.email ilike '%'||$1||'%')
		order by lower(u.name), u.id
		limit $2 offset $3
	`, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var identities []access.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, mapError(err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return identities, nil
}

func (s *Store) CountIdentities(ctx context.Context, query string) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from users u
		where ($1 = '' or u.name ilike '%'||$1||'%' or u.login ilike '%'||$1||'%' or u.email ilike '%'||$1||'%')
	`, query).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, id int64, upd access.IdentityUpdate) (access.Identity, error) {
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
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Email))
		idx++
	}
	if upd.RoleID != nil {
		sets = append(sets, fmt.Sprintf("role_id = $%d", idx))
		args = append(args, *upd.RoleID)
		idx++
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return access.Identity{}, mapError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return access.Identity{}, mapError(err)
		}
		if aff == 0 {
			return access.Identity{}, access.ErrNotFound
		}
	}
	return s.getIdentity(ctx, s.db, id)
}

func (s *Store) UpdateIdentityPassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, first_access = false where id = $1
	`, id, passwordHash)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users set last_login_at = now() where id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// DeactivateIdentity soft-deletes: the login is mangled with a
// _DELETED_<id> suffix so the name can be reused, and the guard below
// refuses to retire the final active administrator. Runs in one
// transaction so the guard stays race-free.
func (s *Store) DeactivateIdentity(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.guardLastAdministrator(ctx, tx, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		update users
		set active = false, login = login || '_DELETED_' || id
		where id = $1 and active
	`, id)
	if err != nil {
		return mapError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if aff == 0 {
		// Already inactive, or missing entirely.
		var exists int
		if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1`, id).Scan(&exists); err != nil {
			return mapError(err)
		}
	}
	return mapError(tx.Commit())
}

// ReactivateIdentity restores the original login by stripping exactly the
// _DELETED_<id> suffix the soft delete appended; logins that happen to
// contain the marker naturally stay intact, as do rows that were never
// deactivated.
func (s *Store) ReactivateIdentity(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users
		set login = case
				when not active and right(login, length('_DELETED_' || id)) = '_DELETED_' || id
				then left(login, length(login) - length('_DELETED_' || id))
				else login
			end,
			active = true
		where id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// PurgeIdentity removes the row and its audit trail in one transaction.
func (s *Store) PurgeIdentity(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.guardLastAdministrator(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from audit_log where user_id = $1`, id); err != nil {
		return mapError(err)
	}
	res, err := tx.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return mapError(tx.Commit())
}

// guardLastAdministrator locks the target row and refuses the removal
// when it is the last active member of the administrator role.
func (s *Store) guardLastAdministrator(ctx context.Context, tx *sql.Tx, id int64) error {
	var (
		roleName string
		active   bool
	)
	err := tx.QueryRowContext(ctx, `
		select r.name, u.active
		from users u
		join roles r on r.id = u.role_id
		where u.id = $1
		for update of u
	`, id).Scan(&roleName, &active)
	if err != nil {
		return mapError(err)
	}
	if roleName != access.AdministratorRoleName || !active {
		return nil
	}
	var remaining int
	err = tx.QueryRowContext(ctx, `
		select count(*)
		from users u
		join roles r on r.id = u.role_id
		where r.name = $1 and u.active
	`, access.AdministratorRoleName).Scan(&remaining)
	if err != nil {
		return mapError(err)
	}
	if remaining <= 1 {
		return access.ErrLastAdministrator
	}
	return nil
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	return nil
}
