// Package pg implements access.Store on PostgreSQL through the pgx stdlib
// driver. All statements go through database/sql; unique and foreign-key
// violations are translated to the access package sentinels so callers
// never see driver errors.
package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"backoffice.dev/internal/access"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

var _ access.Store = (*Store)(nil)

// Open connects to Postgres and tunes the pool. opTimeout bounds every
// statement issued through the store; zero disables the per-op deadline.
func Open(dsn string, opTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, opTimeout: opTimeout}, nil
}

// NewWithDB wraps an existing handle; used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// mapError normalizes driver failures. Unique violations become
// ConflictError with the field inferred from the constraint name,
// foreign-key violations become ErrNotFound, and connectivity or
// deadline failures become ErrStoreUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return access.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return &access.ConflictError{Field: conflictField(pgErr.ConstraintName)}
		case pgErrForeignKeyViolation:
			return access.ErrNotFound
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return access.ErrStoreUnavailable
	}
	return err
}

func conflictField(constraint string) string {
	switch {
	case strings.Contains(constraint, "login"):
		return "login"
	case strings.Contains(constraint, "email"):
		return "email"
	case strings.Contains(constraint, "name"):
		return "name"
	case strings.Contains(constraint, "module"):
		return "permission"
	default:
		return constraint
	}
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
