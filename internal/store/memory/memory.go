// Package memory implements access.Store with in-process maps. It backs
// the behavioral tests and local development without Postgres; semantics
// mirror internal/store/pg, including the last-administrator guard and the
// soft-delete login mangling.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice.dev/internal/access"
)

// Store holds everything under one mutex; operations here are memory-bound
// and the lock keeps id allocation race-free.
type Store struct {
	mu sync.Mutex

	identities map[int64]*access.Identity
	roles      map[int64]*access.Role
	perms      map[int64]*access.Permission
	grants     map[int64]map[access.Grant]struct{} // roleID -> set
	customers  map[int64]*access.Customer
	products   map[int64]*access.Product
	audit      []access.AuditEntry

	nextIdentity   int64
	nextRole       int64
	nextPermission int64
	nextCustomer   int64
	nextProduct    int64
	nextAudit      int64

	now func() time.Time
}

var _ access.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		identities: make(map[int64]*access.Identity),
		roles:      make(map[int64]*access.Role),
		perms:      make(map[int64]*access.Permission),
		grants:     make(map[int64]map[access.Grant]struct{}),
		customers:  make(map[int64]*access.Customer),
		products:   make(map[int64]*access.Product),
		now:        time.Now,
	}
}

// SetClock overrides the time source (useful for tests).
func (s *Store) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// --- identities ---

func (s *Store) CreateIdentity(ctx context.Context, login, name, email, passwordHash string, roleID int64) (access.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return access.Identity{}, access.ErrNotFound
	}
	for _, existing := range s.identities {
		if strings.EqualFold(existing.Login, login) {
			return access.Identity{}, &access.ConflictError{Field: "login"}
		}
		if email != "" && existing.Email != "" && strings.EqualFold(existing.Email, email) {
			return access.Identity{}, &access.ConflictError{Field: "email"}
		}
	}

	s.nextIdentity++
	identity := &access.Identity{
		ID:           s.nextIdentity,
		Login:        login,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		RoleID:       roleID,
		Active:       true,
		FirstAccess:  true,
		CreatedAt:    s.now().UTC(),
	}
	s.identities[identity.ID] = identity
	return s.withRoleName(*identity), nil
}

func (s *Store) GetIdentity(ctx context.Context, id int64) (access.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return access.Identity{}, access.ErrNotFound
	}
	return s.withRoleName(*identity), nil
}

func (s *Store) FindIdentityByLogin(ctx context.Context, login string) (access.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.identities {
		if strings.EqualFold(identity.Login, login) {
			return s.withRoleName(*identity), nil
		}
	}
	return access.Identity{}, access.ErrNotFound
}

func (s *Store) ListIdentities(ctx context.Context, filter access.ListFilter) ([]access.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []access.Identity
	for _, identity := range s.identities {
		if matchesIdentity(identity, filter.Query) {
			matched = append(matched, s.withRoleName(*identity))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if eq := strings.EqualFold(matched[i].Name, matched[j].Name); eq {
			return matched[i].ID < matched[j].ID
		}
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})
	return window(matched, filter.Limit, filter.Offset), nil
}

func (s *Store) CountIdentities(ctx context.Context, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, identity := range s.identities {
		if matchesIdentity(identity, query) {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, id int64, upd access.IdentityUpdate) (access.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return access.Identity{}, access.ErrNotFound
	}
	if upd.Email != nil && *upd.Email != "" {
		for _, existing := range s.identities {
			if existing.ID != id && existing.Email != "" && strings.EqualFold(existing.Email, *upd.Email) {
				return access.Identity{}, &access.ConflictError{Field: "email"}
			}
		}
	}
	if upd.RoleID != nil {
		if _, ok := s.roles[*upd.RoleID]; !ok {
			return access.Identity{}, access.ErrNotFound
		}
		identity.RoleID = *upd.RoleID
	}
	if upd.Name != nil {
		identity.Name = *upd.Name
	}
	if upd.Email != nil {
		identity.Email = *upd.Email
	}
	return s.withRoleName(*identity), nil
}

func (s *Store) UpdateIdentityPassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return access.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.FirstAccess = false
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return access.ErrNotFound
	}
	ts := s.now().UTC()
	identity.LastLoginAt = &ts
	return nil
}

func (s *Store) DeactivateIdentity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return access.ErrNotFound
	}
	if err := s.guardLastAdministrator(identity); err != nil {
		return err
	}
	if identity.Active {
		identity.Active = false
		identity.Login = fmt.Sprintf("%s_DELETED_%d", identity.Login, identity.ID)
	}
	return nil
}

func (s *Store) ReactivateIdentity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return access.ErrNotFound
	}
	login := identity.Login
	// Strip exactly the suffix deactivation appended; a login that
	// legitimately contains the marker stays untouched.
	if marker := fmt.Sprintf("_DELETED_%d", identity.ID); !identity.Active && strings.HasSuffix(login, marker) {
		login = strings.TrimSuffix(login, marker)
	}
	for _, existing := range s.identities {
		if existing.ID != id && strings.EqualFold(existing.Login, login) {
			return &access.ConflictError{Field: "login"}
		}
	}
	identity.Login = login
	identity.Active = true
	return nil
}

func (s *Store) PurgeIdentity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return access.ErrNotFound
	}
	if identity.Active {
		if err := s.guardLastAdministrator(identity); err != nil {
			return err
		}
	}
	kept := s.audit[:0]
	for _, entry := range s.audit {
		if entry.IdentityID != nil && *entry.IdentityID == id {
			continue
		}
		kept = append(kept, entry)
	}
	s.audit = kept
	delete(s.identities, id)
	return nil
}

// guardLastAdministrator must run under s.mu. It refuses to remove the
// target when it is the only remaining active identity of the
// administrator role.
func (s *Store) guardLastAdministrator(target *access.Identity) error {
	role, ok := s.roles[target.RoleID]
	if !ok || role.Name != access.AdministratorRoleName || !target.Active {
		return nil
	}
	active := 0
	for _, identity := range s.identities {
		if identity.Active && identity.RoleID == target.RoleID {
			active++
		}
	}
	if active <= 1 {
		return access.ErrLastAdministrator
	}
	return nil
}

func (s *Store) withRoleName(identity access.Identity) access.Identity {
	if role, ok := s.roles[identity.RoleID]; ok {
		identity.RoleName = role.Name
	}
	return identity
}

func matchesIdentity(identity *access.Identity, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(identity.Name), q) ||
		strings.Contains(strings.ToLower(identity.Login), q) ||
		strings.Contains(strings.ToLower(identity.Email), q)
}

// --- roles ---

func (s *Store) CreateRole(ctx context.Context, name, description string) (access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, name) {
			return access.Role{}, &access.ConflictError{Field: "name"}
		}
	}
	s.nextRole++
	role := &access.Role{
		ID:          s.nextRole,
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	s.roles[role.ID] = role
	s.grants[role.ID] = make(map[access.Grant]struct{})
	return *role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]access.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, *role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return strings.ToLower(roles[i].Name) < strings.ToLower(roles[j].Name)
	})
	return roles, nil
}

func (s *Store) GetRole(ctx context.Context, id int64) (access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return access.Role{}, access.ErrNotFound
	}
	return *role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id int64, upd access.RoleUpdate) (access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return access.Role{}, access.ErrNotFound
	}
	if upd.Name != nil {
		for _, existing := range s.roles {
			if existing.ID != id && strings.EqualFold(existing.Name, *upd.Name) {
				return access.Role{}, &access.ConflictError{Field: "name"}
			}
		}
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	return *role, nil
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return access.ErrNotFound
	}
	for _, identity := range s.identities {
		if identity.RoleID == id {
			return access.ErrConflict
		}
	}
	delete(s.roles, id)
	delete(s.grants, id)
	return nil
}

// --- permissions ---

func (s *Store) EnsurePermissions(ctx context.Context, perms []access.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range perms {
		exists := false
		for _, existing := range s.perms {
			if existing.Module == p.Module && existing.Action == p.Action {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.nextPermission++
		s.perms[s.nextPermission] = &access.Permission{
			ID:          s.nextPermission,
			Module:      p.Module,
			Action:      p.Action,
			Description: p.Description,
		}
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]access.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make([]access.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		perms = append(perms, *p)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Module == perms[j].Module {
			return perms[i].Action < perms[j].Action
		}
		return perms[i].Module < perms[j].Module
	})
	return perms, nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, grants []access.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return access.ErrNotFound
	}
	set := make(map[access.Grant]struct{}, len(grants))
	for _, g := range grants {
		if !s.permissionExists(g) {
			return fmt.Errorf("%w: permission %s/%s not in catalog", access.ErrNotFound, g.Module, g.Action)
		}
		set[g] = struct{}{}
	}
	s.grants[roleID] = set
	return nil
}

func (s *Store) RolePermissions(ctx context.Context, roleID int64) ([]access.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.grants[roleID]
	if !ok {
		if _, exists := s.roles[roleID]; !exists {
			return nil, access.ErrNotFound
		}
		return nil, nil
	}
	grants := make([]access.Grant, 0, len(set))
	for g := range set {
		grants = append(grants, g)
	}
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Module == grants[j].Module {
			return grants[i].Action < grants[j].Action
		}
		return grants[i].Module < grants[j].Module
	})
	return grants, nil
}

func (s *Store) RoleHasPermission(ctx context.Context, roleID int64, module, action string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[roleID]
	if !ok {
		return false, nil
	}
	_, granted := set[access.Grant{Module: module, Action: action}]
	return granted, nil
}

func (s *Store) permissionExists(g access.Grant) bool {
	for _, p := range s.perms {
		if p.Module == g.Module && p.Action == g.Action {
			return true
		}
	}
	return false
}

// --- customers ---

func (s *Store) CreateCustomer(ctx context.Context, c access.Customer) (access.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCustomer++
	c.ID = s.nextCustomer
	s.customers[c.ID] = &c
	stored := c
	return stored, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (access.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return access.Customer{}, access.ErrNotFound
	}
	return *c, nil
}

func (s *Store) ListCustomers(ctx context.Context, filter access.ListFilter) ([]access.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []access.Customer
	for _, c := range s.customers {
		if matchesText(filter.Query, c.Name, c.Email, c.City) {
			matched = append(matched, *c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})
	return window(matched, filter.Limit, filter.Offset), nil
}

func (s *Store) CountCustomers(ctx context.Context, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.customers {
		if matchesText(query, c.Name, c.Email, c.City) {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c access.Customer) (access.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		return access.Customer{}, access.ErrNotFound
	}
	stored := c
	s.customers[c.ID] = &stored
	return stored, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return access.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// --- products ---

func (s *Store) CreateProduct(ctx context.Context, p access.Product) (access.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProduct++
	p.ID = s.nextProduct
	stored := p
	s.products[p.ID] = &stored
	return stored, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (access.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return access.Product{}, access.ErrNotFound
	}
	return *p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter access.ListFilter) ([]access.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []access.Product
	for _, p := range s.products {
		if matchesText(filter.Query, p.Name) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})
	return window(matched, filter.Limit, filter.Offset), nil
}

func (s *Store) CountProducts(ctx context.Context, query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.products {
		if matchesText(query, p.Name) {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p access.Product) (access.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return access.Product{}, access.ErrNotFound
	}
	stored := p
	s.products[p.ID] = &stored
	return stored, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return access.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// --- audit ---

func (s *Store) AppendAudit(ctx context.Context, entry access.AuditEntry) (access.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.IdentityID != nil {
		if _, ok := s.identities[*entry.IdentityID]; !ok {
			return access.AuditEntry{}, access.ErrNotFound
		}
	}
	s.nextAudit++
	entry.ID = s.nextAudit
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	s.audit = append(s.audit, entry)
	return entry, nil
}

func (s *Store) ListRecentAudit(ctx context.Context, limit int) ([]access.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAudit(limit, func(access.AuditEntry) bool { return true }), nil
}

func (s *Store) ListAuditByIdentity(ctx context.Context, identityID int64, limit int) ([]access.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAudit(limit, func(e access.AuditEntry) bool {
		return e.IdentityID != nil && *e.IdentityID == identityID
	}), nil
}

func (s *Store) ListAuditByModule(ctx context.Context, module string, limit int) ([]access.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAudit(limit, func(e access.AuditEntry) bool {
		return e.Module == module
	}), nil
}

// filterAudit must run under s.mu; entries come back newest-first.
func (s *Store) filterAudit(limit int, keep func(access.AuditEntry) bool) []access.AuditEntry {
	var out []access.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	return out
}

// --- helpers ---

func matchesText(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
