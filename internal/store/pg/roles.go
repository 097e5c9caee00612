package pg

import (
	"context"
	"database/sql"
	"errors"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type roleRepo struct {
	q querier
}

func (r roleRepo) Create(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := r.q.QueryRowContext(ctx, `
		insert into roles (id, tenant_id, name, description, is_system)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, role.ID, tenantIDValue(role.Scope), role.Name, nullIfEmpty(role.Description), role.IsSystem)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r roleRepo) GetByID(ctx context.Context, id string, scope auth.Scope) (*auth.Role, error) {
	clause, args, _ := scopeClause(scope, 2)
	var (
		role     auth.Role
		tenantID sql.NullString
		desc     sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		select id, tenant_id, name, description, is_system, created_at, updated_at
		from roles
		where id = $1 and `+clause,
		append([]any{id}, args...)...,
	).Scan(&role.ID, &tenantID, &role.Name, &desc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	role.Scope = scopeOf(tenantID)
	if desc.Valid {
		role.Description = desc.String
	}
	role.PermissionIDs, err = r.permissionIDs(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r roleRepo) List(ctx context.Context, scope auth.Scope) ([]*auth.Role, error) {
	clause, args, _ := scopeClause(scope, 1)
	rows, err := r.q.QueryContext(ctx, `
		select id, tenant_id, name, description, is_system, created_at, updated_at
		from roles
		where `+clause+`
		order by name`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.Role
	for rows.Next() {
		var (
			role     auth.Role
			tenantID sql.NullString
			desc     sql.NullString
		)
		if err := rows.Scan(&role.ID, &tenantID, &role.Name, &desc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Scope = scopeOf(tenantID)
		if desc.Valid {
			role.Description = desc.String
		}
		result = append(result, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r roleRepo) Update(ctx context.Context, role *auth.Role) error {
	res, err := r.q.ExecContext(ctx, `
		update roles set name = $2, description = $3, updated_at = now()
		where id = $1
	`, role.ID, role.Name, nullIfEmpty(role.Description))
	if err != nil {
		return mapWriteError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (r roleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// IsNameUnique checks the name inside one scope partition only: a global row
// never blocks a tenant-private name and vice versa.
func (r roleRepo) IsNameUnique(ctx context.Context, name string, scope auth.Scope, excludeID string) (bool, error) {
	var exists int
	err := r.q.QueryRowContext(ctx, `
		select 1 from roles
		where name = $1
		  and coalesce(tenant_id, '') = coalesce($2, '')
		  and id <> $3
	`, name, tenantIDValue(scope), excludeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (r roleRepo) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.q.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		values ($1, $2)
		on conflict (role_id, permission_id) do nothing
	`, roleID, permissionID)
	return mapWriteError(err)
}

func (r roleRepo) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.q.ExecContext(ctx, `
		delete from role_permissions
		where role_id = $1 and permission_id = $2
	`, roleID, permissionID)
	return err
}

func (r roleRepo) ClearPermissions(ctx context.Context, roleID string) error {
	_, err := r.q.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID)
	return err
}

func (r roleRepo) PermissionNames(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		select p.name
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (r roleRepo) permissionIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		select permission_id from role_permissions
		where role_id = $1
		order by permission_id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
