package auth

import (
	"context"
	"time"
)

// UnitOfWork groups the repositories behind one storage session. Read paths
// receive it bound to the connection pool; commands receive it bound to a
// transaction via Store.Begin.
type UnitOfWork interface {
	Tenants() TenantRepository
	Permissions() PermissionRepository
	Roles() RoleRepository
	RoleGroups() RoleGroupRepository
	RefreshTokens() RefreshTokenRepository
	Users() UserDirectory
}

// Store is the root persistence contract.
type Store interface {
	UnitOfWork
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a unit of work with an open transaction.
type Tx interface {
	UnitOfWork
	Commit() error
	Rollback() error
}

// TenantRepository manages tenant records.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	// IsSlugUnique reports whether slug is free; excludeID exempts an
	// existing tenant during updates.
	IsSlugUnique(ctx context.Context, slug, excludeID string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// PermissionRepository manages the immutable permission catalog.
type PermissionRepository interface {
	// Ensure inserts missing catalog entries; existing names are left
	// untouched.
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
}

// RoleRepository manages roles and their permission links. Every query is
// scope-aware: a tenant scope sees its own rows plus all global rows.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id string, scope Scope) (*Role, error)
	List(ctx context.Context, scope Scope) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
	IsNameUnique(ctx context.Context, name string, scope Scope, excludeID string) (bool, error)

	// AssignPermission is idempotent; repeating a link is a no-op.
	AssignPermission(ctx context.Context, roleID, permissionID string) error
	// RemovePermission is a no-op when the link does not exist.
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	ClearPermissions(ctx context.Context, roleID string) error
	PermissionNames(ctx context.Context, roleID string) ([]string, error)
}

// RoleGroupRepository manages role groups and their role links, with the
// same scoping rules as RoleRepository.
type RoleGroupRepository interface {
	Create(ctx context.Context, g *RoleGroup) error
	GetByID(ctx context.Context, id string, scope Scope) (*RoleGroup, error)
	List(ctx context.Context, scope Scope) ([]*RoleGroup, error)
	// ListTemplates returns the global system groups with their role
	// links loaded, ordered for provisioning.
	ListTemplates(ctx context.Context) ([]*RoleGroup, error)
	Update(ctx context.Context, g *RoleGroup) error
	Delete(ctx context.Context, id string) error
	IsNameUnique(ctx context.Context, name string, scope Scope, excludeID string) (bool, error)

	AssignRole(ctx context.Context, groupID, roleID string) error
	RemoveRole(ctx context.Context, groupID, roleID string) error
	ClearRoles(ctx context.Context, groupID string) error
	RoleIDs(ctx context.Context, groupID string) ([]string, error)
}

// RefreshTokenRepository persists the rotation chain. Rows are only ever
// inserted or marked revoked, never deleted.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	// MarkRotated revokes token and records its successor in a single
	// conditional update ("where token = $1 and not yet revoked and not
	// expired"). It reports whether this call performed the transition;
	// under concurrent rotation of the same token exactly one caller
	// observes true.
	MarkRotated(ctx context.Context, token, successor string, now time.Time) (bool, error)
	// MarkRevoked revokes token without a successor (logout). False when
	// the token is absent or already inactive.
	MarkRevoked(ctx context.Context, token string, now time.Time) (bool, error)
}

// UserDirectory is the read-only view of the identity-management
// collaborator. The core consumes account facts and role memberships; all
// account mutation lives outside this system.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*UserAccount, error)
	// GetByEmail resolves without tenant scoping: an email identifies a
	// global principal before any tenant context exists.
	GetByEmail(ctx context.Context, email string) (*UserAccount, error)
	List(ctx context.Context, tenantID string) ([]*UserAccount, error)
	RoleNames(ctx context.Context, userID string) ([]string, error)
	// EffectivePermissions computes the distinct permission names across
	// the user's role memberships in one aggregated join.
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)
	// EffectivePermissionsBatch resolves many users with a single query
	// set, never one query per user.
	EffectivePermissionsBatch(ctx context.Context, userIDs []string) (map[string][]string, error)
}
