package auth

import "context"

// Principal is an authenticated caller with the roles and permissions that
// were valid when its access token was signed.
type Principal struct {
	UserID      string
	TenantID    string
	Email       string
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from validated token claims.
func NewPrincipal(userID, tenantID, email string, roles, permissions []string) Principal {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return Principal{
		UserID:      userID,
		TenantID:    tenantID,
		Email:       email,
		Roles:       roles,
		Permissions: set,
	}
}

// HasPermission reports whether the principal holds the permission.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}

// Scope returns the tenant boundary the principal operates in.
func (p Principal) Scope() Scope {
	if p.TenantID == "" {
		return GlobalScope()
	}
	return TenantScope(p.TenantID)
}

type principalContextKey struct{}
type scopeContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithScope records the request's tenant boundary. The scope is set
// once after authentication and read-only for the rest of the request;
// nothing here is ambient or mutable.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext returns the request scope, defaulting to global when none
// was established.
func ScopeFromContext(ctx context.Context) Scope {
	if ctx == nil {
		return GlobalScope()
	}
	v, ok := ctx.Value(scopeContextKey{}).(Scope)
	if !ok {
		return GlobalScope()
	}
	return v
}
