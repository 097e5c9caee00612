package auth

import (
	"context"
	"sort"
	"strings"
)

// PermissionResolver computes effective permission sets from current role
// memberships. Results are always freshly resolved; nothing is read back
// from token claims.
type PermissionResolver struct {
	store Store
}

// NewPermissionResolver constructs a resolver over the store.
func NewPermissionResolver(store Store) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// EffectivePermissions returns the distinct permission names across exactly
// the roles currently linked to the user; empty set when the user has no
// role memberships.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidField("userId", "is required")
	}
	names, err := r.store.Users().EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// EffectivePermissionsBatch resolves many users at once with a single query
// set. Users without memberships map to an empty slice.
func (r *PermissionResolver) EffectivePermissionsBatch(ctx context.Context, userIDs []string) (map[string][]string, error) {
	ids := dedupeStrings(userIDs)
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	resolved, err := r.store.Users().EffectivePermissionsBatch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			resolved[id] = []string{}
		}
	}
	return resolved, nil
}

// HasPermission reports whether the user currently holds the permission.
func (r *PermissionResolver) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	set, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := set[permission]
	return ok, nil
}

// SortedPermissions flattens a permission set into a sorted slice, the form
// embedded into token claims.
func SortedPermissions(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
