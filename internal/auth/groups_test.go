package auth_test

import (
	"context"
	"errors"
	"testing"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/store/memory"
)

func newRBACFixture(t *testing.T) (*memory.Store, *auth.RBACService) {
	t.Helper()
	store := memory.NewStore()
	if err := auth.NewRunner(store).Run(context.Background(), auth.SeedCommand{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}
	return store, rbac
}

func permissionID(t *testing.T, store *memory.Store, name string) string {
	t.Helper()
	p, err := store.Permissions().GetByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetByName(%s): %v", name, err)
	}
	return p.ID
}

func TestRoleScoping(t *testing.T) {
	_, rbac := newRBACFixture(t)
	ctx := context.Background()
	scopeA := auth.TenantScope("tenant-a")
	scopeB := auth.TenantScope("tenant-b")

	role, err := rbac.CreateRole(ctx, scopeA, "Auditor", "read-only reviewer")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	// Visible from its own tenant and from nowhere else.
	if _, err := rbac.GetRole(ctx, role.ID, scopeA); err != nil {
		t.Fatalf("GetRole own scope: %v", err)
	}
	if _, err := rbac.GetRole(ctx, role.ID, scopeB); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("cross-tenant read: got %v", err)
	}
	if _, err := rbac.GetRole(ctx, role.ID, auth.GlobalScope()); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("global scope sees tenant row: got %v", err)
	}

	// Tenant listings include global rows; global listings do not include
	// tenant rows.
	fromA, err := rbac.ListRoles(ctx, scopeA)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	var sawOwn, sawGlobal bool
	for _, r := range fromA {
		if r.ID == role.ID {
			sawOwn = true
		}
		if r.Name == auth.RoleSuperAdmin {
			sawGlobal = true
		}
	}
	if !sawOwn || !sawGlobal {
		t.Fatalf("tenant listing incomplete: own=%v global=%v", sawOwn, sawGlobal)
	}
	fromGlobal, err := rbac.ListRoles(ctx, auth.GlobalScope())
	if err != nil {
		t.Fatalf("ListRoles global: %v", err)
	}
	for _, r := range fromGlobal {
		if r.ID == role.ID {
			t.Fatalf("global listing leaked tenant row")
		}
	}
}

func TestRoleNameUniquePerScope(t *testing.T) {
	_, rbac := newRBACFixture(t)
	ctx := context.Background()
	scopeA := auth.TenantScope("tenant-a")
	scopeB := auth.TenantScope("tenant-b")

	if _, err := rbac.CreateRole(ctx, scopeA, "Auditor", ""); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := rbac.CreateRole(ctx, scopeA, "Auditor", ""); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate in scope: got %v", err)
	}
	// Same name in another tenant, and matching a global seed name, are
	// both allowed.
	if _, err := rbac.CreateRole(ctx, scopeB, "Auditor", ""); err != nil {
		t.Fatalf("same name other tenant: %v", err)
	}
	if _, err := rbac.CreateRole(ctx, scopeA, auth.RoleManager, ""); err != nil {
		t.Fatalf("tenant role shadowing global name: %v", err)
	}
}

func TestUpdateRoleKeepsOwnName(t *testing.T) {
	_, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	role, err := rbac.CreateRole(ctx, scope, "Auditor", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	// Renaming to its current name must not trip the uniqueness check.
	if _, err := rbac.UpdateRole(ctx, scope, role.ID, "Auditor", "updated"); err != nil {
		t.Fatalf("UpdateRole same name: %v", err)
	}
	other, err := rbac.CreateRole(ctx, scope, "Reviewer", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := rbac.UpdateRole(ctx, scope, other.ID, "Auditor", ""); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("rename onto taken name: got %v", err)
	}
}

func TestSystemRoleGuards(t *testing.T) {
	_, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	roles, err := rbac.ListRoles(ctx, auth.GlobalScope())
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	var system *auth.Role
	for _, r := range roles {
		if r.Name == auth.RoleSuperAdmin {
			system = r
		}
	}
	if system == nil {
		t.Fatalf("seeded SuperAdmin missing")
	}

	if _, err := rbac.UpdateRole(ctx, scope, system.ID, "Renamed", ""); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("system update: got %v", err)
	}
	if err := rbac.DeleteRole(ctx, scope, system.ID); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("system delete: got %v", err)
	}
	if err := rbac.ClearPermissions(ctx, scope, system.ID); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("system clear: got %v", err)
	}
}

func TestPermissionLinksIdempotent(t *testing.T) {
	store, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	role, err := rbac.CreateRole(ctx, scope, "Auditor", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	pid := permissionID(t, store, auth.PermUsersRead)

	for i := 0; i < 3; i++ {
		if err := rbac.AssignPermission(ctx, scope, role.ID, pid); err != nil {
			t.Fatalf("AssignPermission #%d: %v", i, err)
		}
	}
	got, err := rbac.GetRole(ctx, role.ID, scope)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(got.PermissionIDs) != 1 {
		t.Fatalf("expected one link after repeats, got %d", len(got.PermissionIDs))
	}

	// Removing an absent link is a no-op, not an error.
	if err := rbac.RemovePermission(ctx, scope, role.ID, "missing-perm"); err != nil {
		t.Fatalf("RemovePermission absent: %v", err)
	}
	if err := rbac.RemovePermission(ctx, scope, role.ID, pid); err != nil {
		t.Fatalf("RemovePermission: %v", err)
	}
	got, err = rbac.GetRole(ctx, role.ID, scope)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(got.PermissionIDs) != 0 {
		t.Fatalf("link survived removal")
	}
}

func TestSetRolePermissionsReplacesAtomically(t *testing.T) {
	store, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	role, err := rbac.CreateRole(ctx, scope, "Auditor", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	read := permissionID(t, store, auth.PermUsersRead)
	view := permissionID(t, store, auth.PermReportsView)
	export := permissionID(t, store, auth.PermReportsExport)

	if err := rbac.SetRolePermissions(ctx, scope, role.ID, []string{read, view}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}
	// Duplicates in the input collapse, and repeating the call leaves
	// exactly the requested set.
	want := []string{view, export, export, view}
	for i := 0; i < 2; i++ {
		if err := rbac.SetRolePermissions(ctx, scope, role.ID, want); err != nil {
			t.Fatalf("SetRolePermissions #%d: %v", i, err)
		}
	}
	got, err := rbac.GetRole(ctx, role.ID, scope)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(got.PermissionIDs) != 2 {
		t.Fatalf("expected 2 links, got %v", got.PermissionIDs)
	}
	for _, id := range got.PermissionIDs {
		if id == read {
			t.Fatalf("replaced link survived")
		}
	}
}

func TestRoleGroupLifecycle(t *testing.T) {
	_, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	group, err := rbac.CreateRoleGroup(ctx, scope, "Operations", "ops staff", 5)
	if err != nil {
		t.Fatalf("CreateRoleGroup: %v", err)
	}
	if group.IsSystem {
		t.Fatalf("user-created group marked system")
	}

	role, err := rbac.CreateRole(ctx, scope, "Operator", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	other, err := rbac.CreateRole(ctx, scope, "Dispatcher", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	// SetRoles twice with a duplicated input leaves exactly that set.
	want := []string{role.ID, other.ID, role.ID}
	for i := 0; i < 2; i++ {
		if err := rbac.SetRoles(ctx, scope, group.ID, want); err != nil {
			t.Fatalf("SetRoles #%d: %v", i, err)
		}
	}
	got, err := rbac.GetRoleGroup(ctx, group.ID, scope)
	if err != nil {
		t.Fatalf("GetRoleGroup: %v", err)
	}
	if len(got.RoleIDs) != 2 {
		t.Fatalf("expected 2 role links, got %v", got.RoleIDs)
	}

	if err := rbac.RemoveRole(ctx, scope, group.ID, other.ID); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if err := rbac.ClearRoles(ctx, scope, group.ID); err != nil {
		t.Fatalf("ClearRoles: %v", err)
	}
	got, err = rbac.GetRoleGroup(ctx, group.ID, scope)
	if err != nil {
		t.Fatalf("GetRoleGroup: %v", err)
	}
	if len(got.RoleIDs) != 0 {
		t.Fatalf("links survived clear: %v", got.RoleIDs)
	}

	if err := rbac.DeleteRoleGroup(ctx, scope, group.ID); err != nil {
		t.Fatalf("DeleteRoleGroup: %v", err)
	}
	if _, err := rbac.GetRoleGroup(ctx, group.ID, scope); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("deleted group still readable: %v", err)
	}
}

func TestTemplateGroupGuards(t *testing.T) {
	store, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	templates, err := store.RoleGroups().ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(templates) != 3 {
		t.Fatalf("expected 3 seeded templates, got %d", len(templates))
	}
	tpl := templates[0]

	if _, err := rbac.UpdateRoleGroup(ctx, scope, tpl.ID, "Renamed", "", 9); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("template update: got %v", err)
	}
	if err := rbac.DeleteRoleGroup(ctx, scope, tpl.ID); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("template delete: got %v", err)
	}
	if err := rbac.ClearRoles(ctx, scope, tpl.ID); !errors.Is(err, auth.ErrSystemEntity) {
		t.Fatalf("template clear: got %v", err)
	}
}

func TestDeleteRoleDetachesLinks(t *testing.T) {
	store, rbac := newRBACFixture(t)
	ctx := context.Background()
	scope := auth.TenantScope("tenant-a")

	role, err := rbac.CreateRole(ctx, scope, "Auditor", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	group, err := rbac.CreateRoleGroup(ctx, scope, "Operations", "", 1)
	if err != nil {
		t.Fatalf("CreateRoleGroup: %v", err)
	}
	if err := rbac.AssignRole(ctx, scope, group.ID, role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	pid := permissionID(t, store, auth.PermUsersRead)
	if err := rbac.AssignPermission(ctx, scope, role.ID, pid); err != nil {
		t.Fatalf("AssignPermission: %v", err)
	}

	if err := rbac.DeleteRole(ctx, scope, role.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	got, err := rbac.GetRoleGroup(ctx, group.ID, scope)
	if err != nil {
		t.Fatalf("GetRoleGroup: %v", err)
	}
	if len(got.RoleIDs) != 0 {
		t.Fatalf("deleted role still linked: %v", got.RoleIDs)
	}
}
