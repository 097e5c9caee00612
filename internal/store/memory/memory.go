// Package memory is an in-process store used by tests and local
// development. Transactions serialize on the store lock, which is held from
// Begin until Commit or Rollback; rollback restores a snapshot taken at
// Begin, so commands observe the same all-or-nothing semantics as the
// Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type state struct {
	tenants     map[string]*auth.Tenant
	permissions map[string]*auth.Permission
	roles       map[string]*auth.Role
	rolePerms   map[string]map[string]struct{}
	groups      map[string]*auth.RoleGroup
	groupRoles  map[string]map[string]struct{}
	users       map[string]*auth.UserAccount
	userRoles   map[string]map[string]struct{}
	tokens      map[string]*auth.RefreshToken
}

func newState() *state {
	return &state{
		tenants:     map[string]*auth.Tenant{},
		permissions: map[string]*auth.Permission{},
		roles:       map[string]*auth.Role{},
		rolePerms:   map[string]map[string]struct{}{},
		groups:      map[string]*auth.RoleGroup{},
		groupRoles:  map[string]map[string]struct{}{},
		users:       map[string]*auth.UserAccount{},
		userRoles:   map[string]map[string]struct{}{},
		tokens:      map[string]*auth.RefreshToken{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.tenants {
		t := *v
		c.tenants[k] = &t
	}
	for k, v := range st.permissions {
		p := *v
		c.permissions[k] = &p
	}
	for k, v := range st.roles {
		r := *v
		c.roles[k] = &r
	}
	for k, v := range st.rolePerms {
		c.rolePerms[k] = cloneSet(v)
	}
	for k, v := range st.groups {
		g := *v
		c.groups[k] = &g
	}
	for k, v := range st.groupRoles {
		c.groupRoles[k] = cloneSet(v)
	}
	for k, v := range st.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range st.userRoles {
		c.userRoles[k] = cloneSet(v)
	}
	for k, v := range st.tokens {
		t := *v
		c.tokens[k] = &t
	}
	return c
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// Store implements auth.Store entirely in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ auth.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Tenants() auth.TenantRepository             { return tenantRepo{s, true} }
func (s *Store) Permissions() auth.PermissionRepository     { return permissionRepo{s, true} }
func (s *Store) Roles() auth.RoleRepository                 { return roleRepo{s, true} }
func (s *Store) RoleGroups() auth.RoleGroupRepository       { return roleGroupRepo{s, true} }
func (s *Store) RefreshTokens() auth.RefreshTokenRepository { return refreshTokenRepo{s, true} }
func (s *Store) Users() auth.UserDirectory                  { return userRepo{s, true} }

// Begin acquires the store lock for the whole transaction. Concurrent
// commands therefore serialize, which is exactly what the rotation tests
// rely on.
func (s *Store) Begin(ctx context.Context) (auth.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{store: s, snapshot: s.st.clone()}, nil
}

type tx struct {
	store    *Store
	snapshot *state
	done     bool
}

func (t *tx) Tenants() auth.TenantRepository             { return tenantRepo{t.store, false} }
func (t *tx) Permissions() auth.PermissionRepository     { return permissionRepo{t.store, false} }
func (t *tx) Roles() auth.RoleRepository                 { return roleRepo{t.store, false} }
func (t *tx) RoleGroups() auth.RoleGroupRepository       { return roleGroupRepo{t.store, false} }
func (t *tx) RefreshTokens() auth.RefreshTokenRepository { return refreshTokenRepo{t.store, false} }
func (t *tx) Users() auth.UserDirectory                  { return userRepo{t.store, false} }

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.st = t.snapshot
	t.store.mu.Unlock()
	return nil
}

// AddUser seeds an account record, with test-friendly defaults.
func (s *Store) AddUser(u *auth.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.st.users[u.ID] = &cp
}

// SetUserRoles replaces a user's role memberships.
func (s *Store) SetUserRoles(userID string, roleIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
	s.st.userRoles[userID] = set
}

// locking helpers -----------------------------------------------------------

// withRead runs fn under the store lock when the repository is pool-bound;
// inside a transaction the lock is already held.
func (s *Store) withRead(locked bool, fn func(st *state) error) error {
	if locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

// tenants -------------------------------------------------------------------

type tenantRepo struct {
	s    *Store
	pool bool
}

func (r tenantRepo) Create(ctx context.Context, t *auth.Tenant) error {
	return r.s.withRead(r.pool, func(st *state) error {
		for _, existing := range st.tenants {
			if existing.Slug == t.Slug {
				return auth.ErrConflict
			}
		}
		if t.ID == "" {
			t.ID = ids.New()
		}
		now := time.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
		cp := *t
		st.tenants[t.ID] = &cp
		return nil
	})
}

func (r tenantRepo) GetByID(ctx context.Context, id string) (*auth.Tenant, error) {
	var out *auth.Tenant
	err := r.s.withRead(r.pool, func(st *state) error {
		t, ok := st.tenants[id]
		if !ok {
			return auth.ErrNotFound
		}
		cp := *t
		out = &cp
		return nil
	})
	return out, err
}

func (r tenantRepo) GetBySlug(ctx context.Context, slug string) (*auth.Tenant, error) {
	var out *auth.Tenant
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, t := range st.tenants {
			if t.Slug == slug {
				cp := *t
				out = &cp
				return nil
			}
		}
		return auth.ErrNotFound
	})
	return out, err
}

func (r tenantRepo) List(ctx context.Context) ([]*auth.Tenant, error) {
	var out []*auth.Tenant
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, t := range st.tenants {
			cp := *t
			out = append(out, &cp)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r tenantRepo) IsSlugUnique(ctx context.Context, slug, excludeID string) (bool, error) {
	unique := true
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, t := range st.tenants {
			if t.Slug == slug && t.ID != excludeID {
				unique = false
				return nil
			}
		}
		return nil
	})
	return unique, err
}

func (r tenantRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.s.withRead(r.pool, func(st *state) error {
		t, ok := st.tenants[id]
		if !ok {
			return auth.ErrNotFound
		}
		t.Active = active
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// permissions ---------------------------------------------------------------

type permissionRepo struct {
	s    *Store
	pool bool
}

func (r permissionRepo) Ensure(ctx context.Context, perms []auth.Permission) error {
	return r.s.withRead(r.pool, func(st *state) error {
		for _, p := range perms {
			if r.findByName(st, p.Name) != nil {
				continue
			}
			if p.ID == "" {
				p.ID = ids.New()
			}
			p.CreatedAt = time.Now().UTC()
			cp := p
			st.permissions[p.ID] = &cp
		}
		return nil
	})
}

func (r permissionRepo) findByName(st *state, name string) *auth.Permission {
	for _, p := range st.permissions {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r permissionRepo) List(ctx context.Context) ([]auth.Permission, error) {
	var out []auth.Permission
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, p := range st.permissions {
			out = append(out, *p)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Group != out[j].Group {
				return out[i].Group < out[j].Group
			}
			return out[i].Name < out[j].Name
		})
		return nil
	})
	return out, err
}

func (r permissionRepo) GetByName(ctx context.Context, name string) (*auth.Permission, error) {
	var out *auth.Permission
	err := r.s.withRead(r.pool, func(st *state) error {
		p := r.findByName(st, name)
		if p == nil {
			return auth.ErrNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

// roles ---------------------------------------------------------------------

type roleRepo struct {
	s    *Store
	pool bool
}

func visible(scope auth.Scope, rowScope auth.Scope) bool {
	if rowScope.IsGlobal() {
		return true
	}
	return scope.Equal(rowScope)
}

func (r roleRepo) Create(ctx context.Context, role *auth.Role) error {
	return r.s.withRead(r.pool, func(st *state) error {
		for _, existing := range st.roles {
			if existing.Name == role.Name && existing.Scope.Equal(role.Scope) {
				return auth.ErrConflict
			}
		}
		if role.ID == "" {
			role.ID = ids.New()
		}
		now := time.Now().UTC()
		role.CreatedAt = now
		role.UpdatedAt = now
		cp := *role
		cp.PermissionIDs = nil
		st.roles[role.ID] = &cp
		st.rolePerms[role.ID] = map[string]struct{}{}
		return nil
	})
}

func (r roleRepo) GetByID(ctx context.Context, id string, scope auth.Scope) (*auth.Role, error) {
	var out *auth.Role
	err := r.s.withRead(r.pool, func(st *state) error {
		role, ok := st.roles[id]
		if !ok || !visible(scope, role.Scope) {
			return auth.ErrNotFound
		}
		cp := *role
		cp.PermissionIDs = sortedKeys(st.rolePerms[id])
		out = &cp
		return nil
	})
	return out, err
}

func (r roleRepo) List(ctx context.Context, scope auth.Scope) ([]*auth.Role, error) {
	var out []*auth.Role
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, role := range st.roles {
			if !visible(scope, role.Scope) {
				continue
			}
			cp := *role
			out = append(out, &cp)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r roleRepo) Update(ctx context.Context, role *auth.Role) error {
	return r.s.withRead(r.pool, func(st *state) error {
		existing, ok := st.roles[role.ID]
		if !ok {
			return auth.ErrNotFound
		}
		existing.Name = role.Name
		existing.Description = role.Description
		existing.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r roleRepo) Delete(ctx context.Context, id string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		if _, ok := st.roles[id]; !ok {
			return auth.ErrNotFound
		}
		delete(st.roles, id)
		delete(st.rolePerms, id)
		for _, set := range st.groupRoles {
			delete(set, id)
		}
		for _, set := range st.userRoles {
			delete(set, id)
		}
		return nil
	})
}

func (r roleRepo) IsNameUnique(ctx context.Context, name string, scope auth.Scope, excludeID string) (bool, error) {
	unique := true
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, role := range st.roles {
			if role.Name == name && role.Scope.Equal(scope) && role.ID != excludeID {
				unique = false
				return nil
			}
		}
		return nil
	})
	return unique, err
}

func (r roleRepo) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		if _, ok := st.roles[roleID]; !ok {
			return auth.ErrNotFound
		}
		if _, ok := st.permissions[permissionID]; !ok {
			return auth.ErrNotFound
		}
		set := st.rolePerms[roleID]
		if set == nil {
			set = map[string]struct{}{}
			st.rolePerms[roleID] = set
		}
		set[permissionID] = struct{}{}
		return nil
	})
}

func (r roleRepo) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		delete(st.rolePerms[roleID], permissionID)
		return nil
	})
}

func (r roleRepo) ClearPermissions(ctx context.Context, roleID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		st.rolePerms[roleID] = map[string]struct{}{}
		return nil
	})
}

func (r roleRepo) PermissionNames(ctx context.Context, roleID string) ([]string, error) {
	var out []string
	err := r.s.withRead(r.pool, func(st *state) error {
		for id := range st.rolePerms[roleID] {
			if p, ok := st.permissions[id]; ok {
				out = append(out, p.Name)
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

// role groups ---------------------------------------------------------------

type roleGroupRepo struct {
	s    *Store
	pool bool
}

func (r roleGroupRepo) Create(ctx context.Context, g *auth.RoleGroup) error {
	return r.s.withRead(r.pool, func(st *state) error {
		for _, existing := range st.groups {
			if existing.Name == g.Name && existing.Scope.Equal(g.Scope) {
				return auth.ErrConflict
			}
		}
		if g.ID == "" {
			g.ID = ids.New()
		}
		now := time.Now().UTC()
		g.CreatedAt = now
		g.UpdatedAt = now
		cp := *g
		cp.RoleIDs = nil
		st.groups[g.ID] = &cp
		st.groupRoles[g.ID] = map[string]struct{}{}
		return nil
	})
}

func (r roleGroupRepo) GetByID(ctx context.Context, id string, scope auth.Scope) (*auth.RoleGroup, error) {
	var out *auth.RoleGroup
	err := r.s.withRead(r.pool, func(st *state) error {
		g, ok := st.groups[id]
		if !ok || !visible(scope, g.Scope) {
			return auth.ErrNotFound
		}
		cp := *g
		cp.RoleIDs = sortedKeys(st.groupRoles[id])
		out = &cp
		return nil
	})
	return out, err
}

func (r roleGroupRepo) List(ctx context.Context, scope auth.Scope) ([]*auth.RoleGroup, error) {
	var out []*auth.RoleGroup
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, g := range st.groups {
			if !visible(scope, g.Scope) {
				continue
			}
			cp := *g
			cp.RoleIDs = sortedKeys(st.groupRoles[g.ID])
			out = append(out, &cp)
		}
		sortGroups(out)
		return nil
	})
	return out, err
}

func (r roleGroupRepo) ListTemplates(ctx context.Context) ([]*auth.RoleGroup, error) {
	var out []*auth.RoleGroup
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, g := range st.groups {
			if !g.IsSystem || !g.Scope.IsGlobal() {
				continue
			}
			cp := *g
			cp.RoleIDs = sortedKeys(st.groupRoles[g.ID])
			out = append(out, &cp)
		}
		sortGroups(out)
		return nil
	})
	return out, err
}

func (r roleGroupRepo) Update(ctx context.Context, g *auth.RoleGroup) error {
	return r.s.withRead(r.pool, func(st *state) error {
		existing, ok := st.groups[g.ID]
		if !ok {
			return auth.ErrNotFound
		}
		existing.Name = g.Name
		existing.Description = g.Description
		existing.DisplayOrder = g.DisplayOrder
		existing.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r roleGroupRepo) Delete(ctx context.Context, id string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		if _, ok := st.groups[id]; !ok {
			return auth.ErrNotFound
		}
		delete(st.groups, id)
		delete(st.groupRoles, id)
		return nil
	})
}

func (r roleGroupRepo) IsNameUnique(ctx context.Context, name string, scope auth.Scope, excludeID string) (bool, error) {
	unique := true
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, g := range st.groups {
			if g.Name == name && g.Scope.Equal(scope) && g.ID != excludeID {
				unique = false
				return nil
			}
		}
		return nil
	})
	return unique, err
}

func (r roleGroupRepo) AssignRole(ctx context.Context, groupID, roleID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		if _, ok := st.groups[groupID]; !ok {
			return auth.ErrNotFound
		}
		if _, ok := st.roles[roleID]; !ok {
			return auth.ErrNotFound
		}
		set := st.groupRoles[groupID]
		if set == nil {
			set = map[string]struct{}{}
			st.groupRoles[groupID] = set
		}
		set[roleID] = struct{}{}
		return nil
	})
}

func (r roleGroupRepo) RemoveRole(ctx context.Context, groupID, roleID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		delete(st.groupRoles[groupID], roleID)
		return nil
	})
}

func (r roleGroupRepo) ClearRoles(ctx context.Context, groupID string) error {
	return r.s.withRead(r.pool, func(st *state) error {
		st.groupRoles[groupID] = map[string]struct{}{}
		return nil
	})
}

func (r roleGroupRepo) RoleIDs(ctx context.Context, groupID string) ([]string, error) {
	var out []string
	err := r.s.withRead(r.pool, func(st *state) error {
		out = sortedKeys(st.groupRoles[groupID])
		return nil
	})
	return out, err
}

// refresh tokens ------------------------------------------------------------

type refreshTokenRepo struct {
	s    *Store
	pool bool
}

func (r refreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	return r.s.withRead(r.pool, func(st *state) error {
		if _, ok := st.tokens[t.Token]; ok {
			return auth.ErrConflict
		}
		if t.ID == "" {
			t.ID = ids.New()
		}
		cp := *t
		st.tokens[t.Token] = &cp
		return nil
	})
}

func (r refreshTokenRepo) GetByToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	var out *auth.RefreshToken
	err := r.s.withRead(r.pool, func(st *state) error {
		t, ok := st.tokens[token]
		if !ok {
			return auth.ErrNotFound
		}
		cp := *t
		if t.RevokedAt != nil {
			at := *t.RevokedAt
			cp.RevokedAt = &at
		}
		out = &cp
		return nil
	})
	return out, err
}

func (r refreshTokenRepo) MarkRotated(ctx context.Context, token, successor string, now time.Time) (bool, error) {
	ok := false
	err := r.s.withRead(r.pool, func(st *state) error {
		t, found := st.tokens[token]
		if !found || !t.IsActive(now) {
			return nil
		}
		at := now
		t.RevokedAt = &at
		t.ReplacedByToken = successor
		ok = true
		return nil
	})
	return ok, err
}

func (r refreshTokenRepo) MarkRevoked(ctx context.Context, token string, now time.Time) (bool, error) {
	ok := false
	err := r.s.withRead(r.pool, func(st *state) error {
		t, found := st.tokens[token]
		if !found || !t.IsActive(now) {
			return nil
		}
		at := now
		t.RevokedAt = &at
		ok = true
		return nil
	})
	return ok, err
}

// users ---------------------------------------------------------------------

type userRepo struct {
	s    *Store
	pool bool
}

func (r userRepo) GetByID(ctx context.Context, id string) (*auth.UserAccount, error) {
	var out *auth.UserAccount
	err := r.s.withRead(r.pool, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return auth.ErrNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*auth.UserAccount, error) {
	var out *auth.UserAccount
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return auth.ErrNotFound
	})
	return out, err
}

func (r userRepo) List(ctx context.Context, tenantID string) ([]*auth.UserAccount, error) {
	var out []*auth.UserAccount
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, u := range st.users {
			if u.TenantID != tenantID {
				continue
			}
			cp := *u
			out = append(out, &cp)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
		return nil
	})
	return out, err
}

func (r userRepo) RoleNames(ctx context.Context, userID string) ([]string, error) {
	var out []string
	err := r.s.withRead(r.pool, func(st *state) error {
		for roleID := range st.userRoles[userID] {
			if role, ok := st.roles[roleID]; ok {
				out = append(out, role.Name)
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func (r userRepo) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	var out []string
	err := r.s.withRead(r.pool, func(st *state) error {
		out = effectivePermissions(st, userID)
		return nil
	})
	return out, err
}

func (r userRepo) EffectivePermissionsBatch(ctx context.Context, userIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(userIDs))
	err := r.s.withRead(r.pool, func(st *state) error {
		for _, id := range userIDs {
			if perms := effectivePermissions(st, id); perms != nil {
				result[id] = perms
			}
		}
		return nil
	})
	return result, err
}

func effectivePermissions(st *state, userID string) []string {
	seen := map[string]struct{}{}
	for roleID := range st.userRoles[userID] {
		for permID := range st.rolePerms[roleID] {
			if p, ok := st.permissions[permID]; ok {
				seen[p.Name] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortGroups(groups []*auth.RoleGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].DisplayOrder != groups[j].DisplayOrder {
			return groups[i].DisplayOrder < groups[j].DisplayOrder
		}
		return groups[i].Name < groups[j].Name
	})
}
