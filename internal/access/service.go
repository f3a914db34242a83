package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"backoffice.dev/internal/credential"
)

// AuditRecorder is the slice of the audit subsystem the access core needs.
// RecordBestEffort must never fail the caller.
type AuditRecorder interface {
	Record(ctx context.Context, identityID *int64, action, module, details string) (AuditEntry, error)
	RecordBestEffort(ctx context.Context, identityID *int64, action, module, details string)
}

// Audit action codes written by the access core itself.
const (
	AuditLogin       = "LOGIN"
	AuditLoginFailed = "LOGIN_FAILED"
	AuditLogout      = "LOGOUT"
)

// Service implements authentication, session lifecycle and the
// authorization engine. Permission decisions are never cached: every check
// re-reads the identity and performs one grant lookup, so role edits and
// deactivation take effect on the very next call.
type Service struct {
	store    Store
	sessions *SessionRegistry
	audit    AuditRecorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access-control service.
func NewService(store Store, sessions *SessionRegistry, audit AuditRecorder, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if sessions == nil {
		return nil, errors.New("access: session registry is required")
	}
	if audit == nil {
		return nil, errors.New("access: audit recorder is required")
	}
	svc := &Service{store: store, sessions: sessions, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Sessions exposes the registry for the presentation layer.
func (s *Service) Sessions() *SessionRegistry { return s.sessions }

// Login authenticates a login/password pair and establishes a session.
// Unknown logins, wrong passwords and inactive accounts all come back as
// ErrInvalidCredentials so the login form cannot be used for account
// enumeration. A wrong password against a real active account leaves a
// LOGIN_FAILED audit entry attributed to that identity.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	identity, err := s.store.FindIdentityByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !identity.Active {
		return nil, ErrInvalidCredentials
	}
	if !credential.Verify(password, identity.PasswordHash) {
		s.audit.RecordBestEffort(ctx, &identity.ID, AuditLoginFailed, ModuleSystem, "password verification failed for "+identity.Login)
		return nil, ErrInvalidCredentials
	}

	if err := s.store.TouchLastLogin(ctx, identity.ID); err != nil {
		return nil, err
	}
	session := s.sessions.Create(identity)
	s.audit.RecordBestEffort(ctx, &identity.ID, AuditLogin, ModuleSystem, "login: "+identity.Login)
	return session, nil
}

// Logout records the event and destroys the session. The audit write is
// best-effort: a failing store never blocks session teardown. Calling
// Logout twice, or with nil, is harmless.
func (s *Service) Logout(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	s.audit.RecordBestEffort(ctx, &session.IdentityID, AuditLogout, ModuleSystem, "logout: "+session.Login)
	s.sessions.Destroy(session.ID)
}

// CurrentIdentity re-reads the session's identity from the store. Role
// name, email and the active flag are always live so administrative edits
// are observed immediately.
func (s *Service) CurrentIdentity(ctx context.Context, session *Session) (IdentitySummary, error) {
	if session == nil {
		return IdentitySummary{}, ErrNotFound
	}
	identity, err := s.store.GetIdentity(ctx, session.IdentityID)
	if err != nil {
		return IdentitySummary{}, err
	}
	return summarize(identity), nil
}

// RequireActive confirms the identity behind the session is still active.
// If it was deactivated, every session of that identity is torn down and
// ErrSessionRevoked tells the caller to redirect to re-authentication.
func (s *Service) RequireActive(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrSessionRevoked
	}
	identity, err := s.store.GetIdentity(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.sessions.Destroy(session.ID)
			return ErrSessionRevoked
		}
		return err
	}
	if !identity.Active {
		s.sessions.DestroyAllForIdentity(identity.ID)
		return ErrSessionRevoked
	}
	return nil
}

// HasPermission decides whether the session may perform (module, action).
// Closed-world: unknown sessions, inactive identities, store failures and
// missing grants are all a plain false.
func (s *Service) HasPermission(ctx context.Context, session *Session, module, action string) bool {
	if session == nil || module == "" || action == "" {
		return false
	}
	identity, err := s.store.GetIdentity(ctx, session.IdentityID)
	if err != nil || !identity.Active {
		return false
	}
	granted, err := s.store.RoleHasPermission(ctx, identity.RoleID, module, action)
	if err != nil {
		return false
	}
	return granted
}

// Require is HasPermission with an error for handler plumbing.
func (s *Service) Require(ctx context.Context, session *Session, module, action string) error {
	if err := s.RequireActive(ctx, session); err != nil {
		return err
	}
	if !s.HasPermission(ctx, session, module, action) {
		return ErrPermissionDenied
	}
	return nil
}

// ListPermissions enumerates the grants of the session's current role,
// with the same live-lookup guarantee as HasPermission.
func (s *Service) ListPermissions(ctx context.Context, session *Session) ([]Grant, error) {
	if session == nil {
		return nil, ErrSessionRevoked
	}
	identity, err := s.store.GetIdentity(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if !identity.Active {
		return nil, ErrSessionRevoked
	}
	return s.store.RolePermissions(ctx, identity.RoleID)
}

func summarize(identity Identity) IdentitySummary {
	return IdentitySummary{
		ID:          identity.ID,
		Login:       identity.Login,
		Name:        identity.Name,
		Email:       identity.Email,
		RoleID:      identity.RoleID,
		RoleName:    identity.RoleName,
		Active:      identity.Active,
		FirstAccess: identity.FirstAccess,
	}
}
