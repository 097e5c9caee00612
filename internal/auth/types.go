package auth

import "time"

// Tenant is an isolated customer boundary. Most role and role-group data is
// partitioned by tenant; the slug is the stable lowercase identifier used in
// URLs and configuration.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is an immutable catalog entry created at seed time.
type Permission struct {
	ID          string
	Name        string
	DisplayName string
	Group       PermissionGroup
	Description string
	CreatedAt   time.Time
}

// Role carries a set of permission links. A role is either global (visible
// from every tenant) or private to one tenant; global system roles are
// seed-only and immutable.
type Role struct {
	ID          string
	Name        string
	Description string
	Scope       Scope
	IsSystem    bool
	// PermissionIDs holds the linked permission ids when the role was
	// loaded with its links; treated as a set.
	PermissionIDs []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RoleGroup aggregates roles. Global system groups act as templates cloned
// into new tenants at provisioning time; a clone records its template in
// SourceGroupID.
type RoleGroup struct {
	ID            string
	Name          string
	Description   string
	DisplayOrder  int
	IsSystem      bool
	Scope         Scope
	SourceGroupID string
	// RoleIDs holds the linked role ids when the group was loaded with
	// its links; treated as a set.
	RoleIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone produces a tenant-private copy of a template group. Role links are
// not copied: provisioning re-assigns them in bulk inside its transaction.
func (g *RoleGroup) Clone(tenantID string) *RoleGroup {
	return &RoleGroup{
		Name:          g.Name,
		Description:   g.Description,
		DisplayOrder:  g.DisplayOrder,
		IsSystem:      false,
		Scope:         TenantScope(tenantID),
		SourceGroupID: g.ID,
	}
}

// RefreshToken is one link in a rotation chain. Rows are never deleted; a
// rotated token records its successor in ReplacedByToken, a voluntarily
// revoked one does not.
type RefreshToken struct {
	ID              string
	UserID          string
	Token           string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	ReplacedByToken string
}

// IsActive reports whether the token can still be presented: not revoked and
// not past expiry. This is derived, never stored.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// UserAccount is the read-only view of the identity collaborator's user
// record. The core consumes role memberships and the active flag; it never
// mutates accounts.
type UserAccount struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResolvedUser is a user together with freshly resolved roles and
// permissions, used by listings.
type ResolvedUser struct {
	UserAccount
	Roles       []string
	Permissions []string
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
