package access

import "time"

// Role is a named bundle of permission grants.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is one (module, action) capability from the global catalog.
type Permission struct {
	ID          int64  `json:"id"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// Grant is the (module, action) pair a role holds, without catalog noise.
type Grant struct {
	Module string `json:"module"`
	Action string `json:"action"`
}

// Identity is a system user capable of authenticating.
type Identity struct {
	ID           int64      `json:"id"`
	Login        string     `json:"login"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	RoleID       int64      `json:"role_id"`
	RoleName     string     `json:"role_name,omitempty"`
	Active       bool       `json:"active"`
	FirstAccess  bool       `json:"first_access"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IdentitySummary is the live view of an identity handed to callers that
// must not see the password hash. It is re-read from the store on every
// request; nothing here may be cached across permission checks.
type IdentitySummary struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	RoleID      int64  `json:"role_id"`
	RoleName    string `json:"role_name"`
	Active      bool   `json:"active"`
	FirstAccess bool   `json:"first_access"`
}

// Session is the authenticated context of one identity. It carries only the
// identity id and display fields captured at login; role, active flag and
// everything else authorization-relevant is fetched live per check.
type Session struct {
	ID         string    `json:"id"`
	IdentityID int64     `json:"identity_id"`
	Login      string    `json:"login"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry is an immutable record of a security-relevant event.
// IdentityID is nil for system actions.
type AuditEntry struct {
	ID         int64     `json:"id"`
	IdentityID *int64    `json:"identity_id,omitempty"`
	Action     string    `json:"action"`
	Module     string    `json:"module,omitempty"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Customer is a plain business record.
type Customer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone1 string `json:"phone1,omitempty"`
	Phone2 string `json:"phone2,omitempty"`
	City   string `json:"city,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// Product carries its price in cents to avoid float drift.
type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// IdentityUpdate carries optional field changes for an identity.
// Nil pointers leave the column untouched.
type IdentityUpdate struct {
	Name   *string
	Email  *string
	RoleID *int64
}

// RoleUpdate carries optional field changes for a role.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// ListFilter is the common pagination window for repository listings.
// Query is matched case-insensitively as a substring of display fields.
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}
