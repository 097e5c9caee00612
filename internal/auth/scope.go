package auth

// Scope identifies the visibility boundary of a role or role group. A scope
// is either global (visible from every tenant, immutable by tenant callers)
// or bound to a single tenant. The zero value is the global scope.
//
// The tenant id is deliberately unexported: callers must go through
// TenantID and handle the global case explicitly.
type Scope struct {
	tenantID string
}

// GlobalScope returns the scope shared by every tenant.
func GlobalScope() Scope { return Scope{} }

// TenantScope returns a scope private to the given tenant. An empty id
// degrades to the global scope.
func TenantScope(tenantID string) Scope { return Scope{tenantID: tenantID} }

// IsGlobal reports whether the scope is not bound to a tenant.
func (s Scope) IsGlobal() bool { return s.tenantID == "" }

// TenantID returns the owning tenant id and whether the scope is
// tenant-bound.
func (s Scope) TenantID() (string, bool) { return s.tenantID, s.tenantID != "" }

// Equal reports whether two scopes denote the same boundary.
func (s Scope) Equal(other Scope) bool { return s.tenantID == other.tenantID }

func (s Scope) String() string {
	if s.tenantID == "" {
		return "global"
	}
	return "tenant:" + s.tenantID
}
