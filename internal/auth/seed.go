package auth

import (
	"context"
	"errors"
	"fmt"
)

// Seed role names. The seed creates these as global system rows.
const (
	RoleSuperAdmin  = "SuperAdmin"
	RoleTenantAdmin = "TenantAdmin"
	RoleManager     = "Manager"
	RoleUser        = "User"
)

// Seed template group names, cloned into every newly provisioned tenant.
const (
	GroupTemplateAdministrators = "Administrators"
	GroupTemplateManagers       = "Managers"
	GroupTemplateStandardUsers  = "Standard Users"
)

// SeedCommand populates the permission catalog, the global system roles and
// the template role groups. It is idempotent: already-present rows are left
// untouched, so running it on every deploy is safe.
type SeedCommand struct{}

// Name implements Command.
func (SeedCommand) Name() string { return "catalog.seed" }

// Execute implements Command.
func (SeedCommand) Execute(ctx context.Context, uow UnitOfWork) error {
	if err := uow.Permissions().Ensure(ctx, Catalog); err != nil {
		return fmt.Errorf("ensure permissions: %w", err)
	}

	perms, err := uow.Permissions().List(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(perms))
	allNames := make([]string, 0, len(perms))
	for _, p := range perms {
		byName[p.Name] = p.ID
		allNames = append(allNames, p.Name)
	}

	tenantAdminNames := make([]string, 0, len(allNames))
	for _, n := range allNames {
		if n == PermTenantsUpdate {
			continue
		}
		tenantAdminNames = append(tenantAdminNames, n)
	}

	roles := []struct {
		name        string
		description string
		permissions []string
	}{
		{RoleSuperAdmin, "Full access to every operation", allNames},
		{RoleTenantAdmin, "Administers a single tenant", tenantAdminNames},
		{RoleManager, "Manages users and reporting", []string{
			PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
			PermReportsView, PermReportsExport,
		}},
		{RoleUser, "Read-only access plus report viewing", []string{
			PermUsersRead, PermRolesRead, PermTenantsRead, PermRoleGroupsRead,
			PermReportsView,
		}},
	}

	roleIDs := make(map[string]string, len(roles))
	for _, spec := range roles {
		role, err := ensureSystemRole(ctx, uow, spec.name, spec.description)
		if err != nil {
			return err
		}
		roleIDs[spec.name] = role.ID
		for _, permName := range spec.permissions {
			pid, ok := byName[permName]
			if !ok {
				return fmt.Errorf("seed: permission %q missing from catalog", permName)
			}
			if err := uow.Roles().AssignPermission(ctx, role.ID, pid); err != nil {
				return fmt.Errorf("seed role %q: %w", spec.name, err)
			}
		}
	}

	groups := []struct {
		name        string
		description string
		order       int
		roles       []string
	}{
		{GroupTemplateAdministrators, "Administrative roles for a tenant", 1, []string{RoleTenantAdmin}},
		{GroupTemplateManagers, "Management roles", 2, []string{RoleManager}},
		{GroupTemplateStandardUsers, "Default roles for regular accounts", 3, []string{RoleUser}},
	}
	for _, spec := range groups {
		group, err := ensureSystemGroup(ctx, uow, spec.name, spec.description, spec.order)
		if err != nil {
			return err
		}
		for _, roleName := range spec.roles {
			if err := uow.RoleGroups().AssignRole(ctx, group.ID, roleIDs[roleName]); err != nil {
				return fmt.Errorf("seed group %q: %w", spec.name, err)
			}
		}
	}
	return nil
}

func ensureSystemRole(ctx context.Context, uow UnitOfWork, name, description string) (*Role, error) {
	existing, err := uow.Roles().List(ctx, GlobalScope())
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Name == name && r.Scope.IsGlobal() {
			return r, nil
		}
	}
	role := &Role{
		Name:        name,
		Description: description,
		Scope:       GlobalScope(),
		IsSystem:    true,
	}
	if err := uow.Roles().Create(ctx, role); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("seed role %q: %w", name, err)
		}
		return nil, err
	}
	return role, nil
}

func ensureSystemGroup(ctx context.Context, uow UnitOfWork, name, description string, order int) (*RoleGroup, error) {
	existing, err := uow.RoleGroups().List(ctx, GlobalScope())
	if err != nil {
		return nil, err
	}
	for _, g := range existing {
		if g.Name == name && g.Scope.IsGlobal() {
			return g, nil
		}
	}
	group := &RoleGroup{
		Name:         name,
		Description:  description,
		DisplayOrder: order,
		Scope:        GlobalScope(),
		IsSystem:     true,
	}
	if err := uow.RoleGroups().Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}
