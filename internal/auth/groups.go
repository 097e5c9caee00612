package auth

import (
	"context"
	"errors"
	"strings"
)

// RBACService manages roles and role groups within a caller's tenant scope.
// Reads go straight to the store; every mutation runs as a command inside a
// transaction.
type RBACService struct {
	store  Store
	runner *Runner
}

// NewRBACService constructs the role/role-group management service.
func NewRBACService(store Store) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &RBACService{store: store, runner: NewRunner(store)}, nil
}

// ListPermissions returns the full permission catalog.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions().List(ctx)
}

// Roles ---------------------------------------------------------------------

// CreateRole creates a role in the given scope. The name must be unique
// within that scope; global rows do not block tenant-private names.
func (s *RBACService) CreateRole(ctx context.Context, scope Scope, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	unique, err := s.store.Roles().IsNameUnique(ctx, name, scope, "")
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	role := &Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Scope:       scope,
	}
	err = s.runner.Run(ctx, NewCommand("role.create", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().Create(ctx, role)
	}))
	if err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole returns a role visible from the scope: its own tenant's rows plus
// all global rows. Anything else is reported as not found.
func (s *RBACService) GetRole(ctx context.Context, id string, scope Scope) (*Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidField("roleId", "is required")
	}
	return s.store.Roles().GetByID(ctx, id, scope)
}

// ListRoles lists the roles visible from the scope.
func (s *RBACService) ListRoles(ctx context.Context, scope Scope) ([]*Role, error) {
	return s.store.Roles().List(ctx, scope)
}

// UpdateRole renames a role. Global system roles are immutable.
func (s *RBACService) UpdateRole(ctx context.Context, scope Scope, id, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	role, err := s.store.Roles().GetByID(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if role.IsSystem && role.Scope.IsGlobal() {
		return nil, ErrSystemEntity
	}
	unique, err := s.store.Roles().IsNameUnique(ctx, name, role.Scope, role.ID)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	role.Name = name
	role.Description = strings.TrimSpace(description)
	err = s.runner.Run(ctx, NewCommand("role.update", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().Update(ctx, role)
	}))
	if err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role. Deleting a global system role is a business
// error, never a fault.
func (s *RBACService) DeleteRole(ctx context.Context, scope Scope, id string) error {
	role, err := s.store.Roles().GetByID(ctx, id, scope)
	if err != nil {
		return err
	}
	if role.IsSystem && role.Scope.IsGlobal() {
		return ErrSystemEntity
	}
	return s.runner.Run(ctx, NewCommand("role.delete", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().Delete(ctx, role.ID)
	}))
}

// AssignPermission links a permission to a role. Repeat calls are no-ops.
func (s *RBACService) AssignPermission(ctx context.Context, scope Scope, roleID, permissionID string) error {
	role, err := s.guardRoleLinks(ctx, scope, roleID)
	if err != nil {
		return err
	}
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return invalidField("permissionId", "is required")
	}
	return s.runner.Run(ctx, NewCommand("role.assign-permission", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().AssignPermission(ctx, role.ID, permissionID)
	}))
}

// RemovePermission unlinks a permission; absent links are a no-op.
func (s *RBACService) RemovePermission(ctx context.Context, scope Scope, roleID, permissionID string) error {
	role, err := s.guardRoleLinks(ctx, scope, roleID)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, NewCommand("role.remove-permission", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().RemovePermission(ctx, role.ID, permissionID)
	}))
}

// ClearPermissions removes every permission link from the role.
func (s *RBACService) ClearPermissions(ctx context.Context, scope Scope, roleID string) error {
	role, err := s.guardRoleLinks(ctx, scope, roleID)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, NewCommand("role.clear-permissions", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Roles().ClearPermissions(ctx, role.ID)
	}))
}

// SetRolePermissions atomically replaces the role's permission links with
// the deduplicated input set.
func (s *RBACService) SetRolePermissions(ctx context.Context, scope Scope, roleID string, permissionIDs []string) error {
	role, err := s.guardRoleLinks(ctx, scope, roleID)
	if err != nil {
		return err
	}
	ids := dedupeStrings(permissionIDs)
	return s.runner.Run(ctx, NewCommand("role.set-permissions", func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.Roles().ClearPermissions(ctx, role.ID); err != nil {
			return err
		}
		for _, pid := range ids {
			if err := uow.Roles().AssignPermission(ctx, role.ID, pid); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *RBACService) guardRoleLinks(ctx context.Context, scope Scope, roleID string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, invalidField("roleId", "is required")
	}
	role, err := s.store.Roles().GetByID(ctx, roleID, scope)
	if err != nil {
		return nil, err
	}
	if role.IsSystem && role.Scope.IsGlobal() {
		return nil, ErrSystemEntity
	}
	return role, nil
}

// Role groups ---------------------------------------------------------------

// CreateRoleGroup creates a role group in the given scope.
func (s *RBACService) CreateRoleGroup(ctx context.Context, scope Scope, name, description string, displayOrder int) (*RoleGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	unique, err := s.store.RoleGroups().IsNameUnique(ctx, name, scope, "")
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	group := &RoleGroup{
		Name:         name,
		Description:  strings.TrimSpace(description),
		DisplayOrder: displayOrder,
		Scope:        scope,
	}
	err = s.runner.Run(ctx, NewCommand("role-group.create", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().Create(ctx, group)
	}))
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetRoleGroup returns a group visible from the scope.
func (s *RBACService) GetRoleGroup(ctx context.Context, id string, scope Scope) (*RoleGroup, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidField("groupId", "is required")
	}
	return s.store.RoleGroups().GetByID(ctx, id, scope)
}

// ListRoleGroups lists the groups visible from the scope.
func (s *RBACService) ListRoleGroups(ctx context.Context, scope Scope) ([]*RoleGroup, error) {
	return s.store.RoleGroups().List(ctx, scope)
}

// UpdateRoleGroup updates group metadata. System template metadata is
// immutable.
func (s *RBACService) UpdateRoleGroup(ctx context.Context, scope Scope, id, name, description string, displayOrder int) (*RoleGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	group, err := s.store.RoleGroups().GetByID(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if group.IsSystem && group.Scope.IsGlobal() {
		return nil, ErrSystemEntity
	}
	unique, err := s.store.RoleGroups().IsNameUnique(ctx, name, group.Scope, group.ID)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	group.Name = name
	group.Description = strings.TrimSpace(description)
	group.DisplayOrder = displayOrder
	err = s.runner.Run(ctx, NewCommand("role-group.update", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().Update(ctx, group)
	}))
	if err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteRoleGroup removes a group; deleting a global system template is a
// business error.
func (s *RBACService) DeleteRoleGroup(ctx context.Context, scope Scope, id string) error {
	group, err := s.store.RoleGroups().GetByID(ctx, id, scope)
	if err != nil {
		return err
	}
	if group.IsSystem && group.Scope.IsGlobal() {
		return ErrSystemEntity
	}
	return s.runner.Run(ctx, NewCommand("role-group.delete", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().Delete(ctx, group.ID)
	}))
}

// AssignRole links a role into a group. Repeat calls are no-ops.
func (s *RBACService) AssignRole(ctx context.Context, scope Scope, groupID, roleID string) error {
	group, err := s.guardGroupLinks(ctx, scope, groupID)
	if err != nil {
		return err
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return invalidField("roleId", "is required")
	}
	return s.runner.Run(ctx, NewCommand("role-group.assign-role", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().AssignRole(ctx, group.ID, roleID)
	}))
}

// RemoveRole unlinks a role; absent links are a no-op.
func (s *RBACService) RemoveRole(ctx context.Context, scope Scope, groupID, roleID string) error {
	group, err := s.guardGroupLinks(ctx, scope, groupID)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, NewCommand("role-group.remove-role", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().RemoveRole(ctx, group.ID, roleID)
	}))
}

// ClearRoles removes every role link from the group.
func (s *RBACService) ClearRoles(ctx context.Context, scope Scope, groupID string) error {
	group, err := s.guardGroupLinks(ctx, scope, groupID)
	if err != nil {
		return err
	}
	return s.runner.Run(ctx, NewCommand("role-group.clear-roles", func(ctx context.Context, uow UnitOfWork) error {
		return uow.RoleGroups().ClearRoles(ctx, group.ID)
	}))
}

// SetRoles atomically replaces the group's role links with the deduplicated
// input set: calling it twice with the same ids leaves exactly that set.
func (s *RBACService) SetRoles(ctx context.Context, scope Scope, groupID string, roleIDs []string) error {
	group, err := s.guardGroupLinks(ctx, scope, groupID)
	if err != nil {
		return err
	}
	ids := dedupeStrings(roleIDs)
	return s.runner.Run(ctx, NewCommand("role-group.set-roles", func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.RoleGroups().ClearRoles(ctx, group.ID); err != nil {
			return err
		}
		for _, rid := range ids {
			if err := uow.RoleGroups().AssignRole(ctx, group.ID, rid); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *RBACService) guardGroupLinks(ctx context.Context, scope Scope, groupID string) (*RoleGroup, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, invalidField("groupId", "is required")
	}
	group, err := s.store.RoleGroups().GetByID(ctx, groupID, scope)
	if err != nil {
		return nil, err
	}
	if group.IsSystem && group.Scope.IsGlobal() {
		return nil, ErrSystemEntity
	}
	return group, nil
}
