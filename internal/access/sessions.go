package access

import (
	cryptorand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// newSessionID mints a bearer credential. Entropy must come from
// crypto/rand: handles are the only proof of authentication, so they may
// not be derivable from the clock or any seed.
func newSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), cryptorand.Reader).String()
}

// SessionRegistry holds the live sessions of this process. Handles are
// opaque ULIDs; there is nothing to verify offline, a handle is valid
// exactly while it is present here.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRegistry constructs a registry. ttl <= 0 disables expiry.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new session for the identity and returns it.
func (r *SessionRegistry) Create(identity Identity) *Session {
	s := &Session{
		ID:         newSessionID(),
		IdentityID: identity.ID,
		Login:      identity.Login,
		Name:       identity.Name,
		CreatedAt:  r.now().UTC(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Resolve returns the session for a handle, or false for unknown or
// expired handles. Expired sessions are dropped on access.
func (r *SessionRegistry) Resolve(handle string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && r.now().Sub(s.CreatedAt) > r.ttl {
		r.Destroy(handle)
		return nil, false
	}
	return s, true
}

// Destroy removes a session. Unknown handles are a no-op.
func (r *SessionRegistry) Destroy(handle string) {
	r.mu.Lock()
	delete(r.sessions, handle)
	r.mu.Unlock()
}

// DestroyAllForIdentity tears down every session of one identity, used
// when an administrator deactivates the account.
func (r *SessionRegistry) DestroyAllForIdentity(identityID int64) {
	r.mu.Lock()
	for handle, s := range r.sessions {
		if s.IdentityID == identityID {
			delete(r.sessions, handle)
		}
	}
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
