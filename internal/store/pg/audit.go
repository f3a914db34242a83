package pg

import (
	"context"
	"database/sql"

	"backoffice.dev/internal/access"
)

func (s *Store) AppendAudit(ctx context.Context, entry access.AuditEntry) (access.AuditEntry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var userID sql.NullInt64
	if entry.IdentityID != nil {
		userID = sql.NullInt64{Int64: *entry.IdentityID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		insert into audit_log (user_id, action, module, details, occurred_at)
		values ($1, $2, $3, $4, coalesce($5, now()))
		returning id, occurred_at
	`, userID, entry.Action, entry.Module, nullIfEmpty(entry.Details), nullTime(entry)).Scan(&entry.ID, &entry.OccurredAt)
	if err != nil {
		return access.AuditEntry{}, mapError(err)
	}
	return entry, nil
}

func nullTime(entry access.AuditEntry) any {
	if entry.OccurredAt.IsZero() {
		return nil
	}
	return entry.OccurredAt
}

const auditColumns = `id, user_id, action, module, coalesce(details, ''), occurred_at`

func (s *Store) ListRecentAudit(ctx context.Context, limit int) ([]access.AuditEntry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select `+auditColumns+`
		from audit_log
		order by id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return scanAuditRows(rows)
}

func (s *Store) ListAuditByIdentity(ctx context.Context, identityID int64, limit int) ([]access.AuditEntry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select `+auditColumns+`
		from audit_log
		where user_id = $1
		order by id desc
		limit $2
	`, identityID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return scanAuditRows(rows)
}

func (s *Store) ListAuditByModule(ctx context.Context, module string, limit int) ([]access.AuditEntry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select `+auditColumns+`
		from audit_log
		where module = $1
		order by id desc
		limit $2
	`, module, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]access.AuditEntry, error) {
	defer rows.Close()

	var entries []access.AuditEntry
	for rows.Next() {
		var (
			entry  access.AuditEntry
			userID sql.NullInt64
		)
		if err := rows.Scan(&entry.ID, &userID, &entry.Action, &entry.Module, &entry.Details, &entry.OccurredAt); err != nil {
			return nil, mapError(err)
		}
		if userID.Valid {
			id := userID.Int64
			entry.IdentityID = &id
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}
