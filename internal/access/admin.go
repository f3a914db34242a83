package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backoffice.dev/internal/credential"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Admin is the validation layer in front of the entity repositories. It
// normalizes input and hashes passwords; authorization happens before any
// of these methods are reached, and audit entries are appended by the
// caller after they succeed.
type Admin struct {
	store Store
}

// NewAdmin constructs the admin service.
func NewAdmin(store Store) (*Admin, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	return &Admin{store: store}, nil
}

// --- customers ---

func (a *Admin) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if err := normalizeCustomer(&c); err != nil {
		return Customer{}, err
	}
	return a.store.CreateCustomer(ctx, c)
}

func (a *Admin) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if c.ID <= 0 {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	if err := normalizeCustomer(&c); err != nil {
		return Customer{}, err
	}
	return a.store.UpdateCustomer(ctx, c)
}

func (a *Admin) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return a.store.GetCustomer(ctx, id)
}

func (a *Admin) DeleteCustomer(ctx context.Context, id int64) error {
	return a.store.DeleteCustomer(ctx, id)
}

func (a *Admin) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	filter = clampFilter(filter)
	customers, err := a.store.ListCustomers(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.store.CountCustomers(ctx, filter.Query)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func normalizeCustomer(c *Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Phone1 = strings.TrimSpace(c.Phone1)
	c.Phone2 = strings.TrimSpace(c.Phone2)
	c.City = strings.TrimSpace(c.City)
	c.Notes = strings.TrimSpace(c.Notes)
	return nil
}

// --- products ---

func (a *Admin) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := normalizeProduct(&p); err != nil {
		return Product{}, err
	}
	return a.store.CreateProduct(ctx, p)
}

func (a *Admin) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	if p.ID <= 0 {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if err := normalizeProduct(&p); err != nil {
		return Product{}, err
	}
	return a.store.UpdateProduct(ctx, p)
}

func (a *Admin) GetProduct(ctx context.Context, id int64) (Product, error) {
	return a.store.GetProduct(ctx, id)
}

func (a *Admin) DeleteProduct(ctx context.Context, id int64) error {
	return a.store.DeleteProduct(ctx, id)
}

func (a *Admin) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	filter = clampFilter(filter)
	products, err := a.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.store.CountProducts(ctx, filter.Query)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func normalizeProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: product price must not be negative", ErrInvalidInput)
	}
	return nil
}

// --- users ---

// CreateUser hashes the password and creates the identity as active with
// the first-access flag set, so the UI can force a password change.
func (a *Admin) CreateUser(ctx context.Context, login, name, email, password string, roleID int64) (Identity, error) {
	login = strings.TrimSpace(login)
	if login == "" || strings.ContainsAny(login, " \t") {
		return Identity{}, fmt.Errorf("%w: login must be non-empty without spaces", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email != "" && !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if roleID <= 0 {
		return Identity{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	hash, err := credential.Hash(password)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return a.store.CreateIdentity(ctx, login, name, email, hash, roleID)
}

func (a *Admin) UpdateUser(ctx context.Context, id int64, upd IdentityUpdate) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Identity{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email != "" && !strings.Contains(email, "@") {
			return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.RoleID != nil && *upd.RoleID <= 0 {
		return Identity{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	return a.store.UpdateIdentity(ctx, id, upd)
}

// ChangePassword re-hashes and stores a new password. The store clears the
// first-access flag alongside.
func (a *Admin) ChangePassword(ctx context.Context, id int64, password string) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	identity, err := a.store.GetIdentity(ctx, id)
	if err != nil {
		return err
	}
	if !identity.Active {
		return ErrInactiveAccount
	}
	hash, err := credential.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return a.store.UpdateIdentityPassword(ctx, id, hash)
}

func (a *Admin) GetUser(ctx context.Context, id int64) (Identity, error) {
	return a.store.GetIdentity(ctx, id)
}

func (a *Admin) ListUsers(ctx context.Context, filter ListFilter) ([]Identity, int, error) {
	filter = clampFilter(filter)
	users, err := a.store.ListIdentities(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.store.CountIdentities(ctx, filter.Query)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// DeactivateUser soft-deletes: the row stays for audit attribution, the
// login is mangled so the unique constraint frees up, and the store
// refuses to remove the last active administrator.
func (a *Admin) DeactivateUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return a.store.DeactivateIdentity(ctx, id)
}

// ReactivateUser restores the original login and flips the account back on.
func (a *Admin) ReactivateUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return a.store.ReactivateIdentity(ctx, id)
}

// PurgeUser hard-deletes the identity and its audit entries. Same
// last-administrator guard as deactivation.
func (a *Admin) PurgeUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return a.store.PurgeIdentity(ctx, id)
}

// --- roles and permissions ---

func (a *Admin) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return a.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

func (a *Admin) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	if id <= 0 {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return a.store.UpdateRole(ctx, id, upd)
}

func (a *Admin) DeleteRole(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return a.store.DeleteRole(ctx, id)
}

func (a *Admin) GetRole(ctx context.Context, id int64) (Role, error) {
	return a.store.GetRole(ctx, id)
}

func (a *Admin) ListRoles(ctx context.Context) ([]Role, error) {
	return a.store.ListRoles(ctx)
}

// SetRolePermissions replaces the role's grants with the given set.
func (a *Admin) SetRolePermissions(ctx context.Context, roleID int64, grants []Grant) error {
	if roleID <= 0 {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	deduped := make([]Grant, 0, len(grants))
	seen := make(map[Grant]struct{}, len(grants))
	for _, g := range grants {
		g.Module = strings.ToUpper(strings.TrimSpace(g.Module))
		g.Action = strings.ToUpper(strings.TrimSpace(g.Action))
		if g.Module == "" || g.Action == "" {
			return fmt.Errorf("%w: module and action are required", ErrInvalidInput)
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		deduped = append(deduped, g)
	}
	return a.store.SetRolePermissions(ctx, roleID, deduped)
}

func (a *Admin) RolePermissions(ctx context.Context, roleID int64) ([]Grant, error) {
	if roleID <= 0 {
		return nil, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return a.store.RolePermissions(ctx, roleID)
}

func (a *Admin) ListPermissionCatalog(ctx context.Context) ([]Permission, error) {
	return a.store.ListPermissions(ctx)
}

func clampFilter(filter ListFilter) ListFilter {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
