package access

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers unknown login, wrong password and, on
	// the public login path, inactive accounts. The message never reveals
	// which half of the pair was wrong.
	ErrInvalidCredentials = errors.New("access: invalid credentials")

	// ErrInactiveAccount is surfaced only in administrator-facing flows,
	// where the account's existence is already implied.
	ErrInactiveAccount = errors.New("access: account is inactive")

	// ErrSessionRevoked signals that a live session's identity was
	// deactivated; callers must drop the session and re-authenticate.
	ErrSessionRevoked = errors.New("access: session revoked")

	// ErrPermissionDenied means the identity is authenticated but its role
	// holds no grant for the requested (module, action).
	ErrPermissionDenied = errors.New("access: permission denied")

	// ErrLastAdministrator guards the sole remaining active identity of
	// the administrator role against deactivation and deletion.
	ErrLastAdministrator = errors.New("access: cannot remove the last active administrator")

	ErrNotFound     = errors.New("access: not found")
	ErrInvalidInput = errors.New("access: invalid input")
	ErrConflict     = errors.New("access: resource conflict")

	// ErrStoreUnavailable normalizes timeouts and connection failures at
	// the persistence boundary.
	ErrStoreUnavailable = errors.New("access: store unavailable")
)

// ConflictError identifies which unique field collided on create/update.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("access: %s already in use", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
