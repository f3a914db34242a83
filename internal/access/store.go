package access

import "context"

// Store describes the persistence operations the access-control core and
// the admin services require. Implementations live in internal/store.
type Store interface {
	IdentityStore
	RoleStore
	PermissionStore
	CustomerStore
	ProductStore
	AuditStore
}

// IdentityStore manages user accounts.
//
// FindIdentityByLogin matches the login name case-insensitively and returns
// inactive identities too; the caller decides how inactivity surfaces.
// Deactivation mangles the login to login_DELETED_<id> so the unique
// constraint frees up, and reactivation restores the original string.
// DeactivateIdentity and PurgeIdentity enforce the last-active-administrator
// guard and return ErrLastAdministrator when it trips; PurgeIdentity also
// removes the identity's audit entries in the same transaction.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, login, name, email, passwordHash string, roleID int64) (Identity, error)
	GetIdentity(ctx context.Context, id int64) (Identity, error)
	FindIdentityByLogin(ctx context.Context, login string) (Identity, error)
	ListIdentities(ctx context.Context, filter ListFilter) ([]Identity, error)
	CountIdentities(ctx context.Context, query string) (int, error)
	UpdateIdentity(ctx context.Context, id int64, upd IdentityUpdate) (Identity, error)
	UpdateIdentityPassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, id int64) error
	DeactivateIdentity(ctx context.Context, id int64) error
	ReactivateIdentity(ctx context.Context, id int64) error
	PurgeIdentity(ctx context.Context, id int64) error
}

// RoleStore manages the role catalog.
type RoleStore interface {
	CreateRole(ctx context.Context, name, description string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// PermissionStore manages the global permission catalog and role grants.
// RoleHasPermission is the single-lookup check behind every authorization
// decision; it must never consult cached state.
type PermissionStore interface {
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	SetRolePermissions(ctx context.Context, roleID int64, grants []Grant) error
	RolePermissions(ctx context.Context, roleID int64) ([]Grant, error)
	RoleHasPermission(ctx context.Context, roleID int64, module, action string) (bool, error)
}

// CustomerStore persists customer records. Listings are ordered by name.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error)
	CountCustomers(ctx context.Context, query string) (int, error)
	UpdateCustomer(ctx context.Context, c Customer) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// ProductStore persists product records. Listings are ordered by name.
type ProductStore interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	CountProducts(ctx context.Context, query string) (int, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// AuditStore appends immutable entries and serves newest-first reads.
// AppendAudit assigns the id and timestamp at write time.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListRecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	ListAuditByIdentity(ctx context.Context, identityID int64, limit int) ([]AuditEntry, error)
	ListAuditByModule(ctx context.Context, module string, limit int) ([]AuditEntry, error)
}
