package pg

import (
	"context"
	"database/sql"
	"errors"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type roleGroupRepo struct {
	q querier
}

func (r roleGroupRepo) Create(ctx context.Context, g *auth.RoleGroup) error {
	if g.ID == "" {
		g.ID = ids.New()
	}
	row := r.q.QueryRowContext(ctx, `
		insert into role_groups (id, tenant_id, name, description, display_order, is_system, source_group_id)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, g.ID, tenantIDValue(g.Scope), g.Name, nullIfEmpty(g.Description), g.DisplayOrder, g.IsSystem, nullIfEmpty(g.SourceGroupID))
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r roleGroupRepo) GetByID(ctx context.Context, id string, scope auth.Scope) (*auth.RoleGroup, error) {
	clause, args, _ := scopeClause(scope, 2)
	g, err := r.scanOne(r.q.QueryRowContext(ctx, `
		select id, tenant_id, name, description, display_order, is_system, source_group_id, created_at, updated_at
		from role_groups
		where id = $1 and `+clause,
		append([]any{id}, args...)...,
	))
	if err != nil {
		return nil, err
	}
	g.RoleIDs, err = r.RoleIDs(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r roleGroupRepo) List(ctx context.Context, scope auth.Scope) ([]*auth.RoleGroup, error) {
	clause, args, _ := scopeClause(scope, 1)
	return r.list(ctx, `
		select id, tenant_id, name, description, display_order, is_system, source_group_id, created_at, updated_at
		from role_groups
		where `+clause+`
		order by display_order, name`,
		args...,
	)
}

// ListTemplates loads the global system groups with their role links, in
// display order. Provisioning iterates this set.
func (r roleGroupRepo) ListTemplates(ctx context.Context) ([]*auth.RoleGroup, error) {
	groups, err := r.list(ctx, `
		select id, tenant_id, name, description, display_order, is_system, source_group_id, created_at, updated_at
		from role_groups
		where tenant_id is null and is_system
		order by display_order, name`,
	)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		g.RoleIDs, err = r.RoleIDs(ctx, g.ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (r roleGroupRepo) Update(ctx context.Context, g *auth.RoleGroup) error {
	res, err := r.q.ExecContext(ctx, `
		update role_groups
		set name = $2, description = $3, display_order = $4, updated_at = now()
		where id = $1
	`, g.ID, g.Name, nullIfEmpty(g.Description), g.DisplayOrder)
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

func (r roleGroupRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `delete from role_groups where id = $1`, id)
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

func (r roleGroupRepo) IsNameUnique(ctx context.Context, name string, scope auth.Scope, excludeID string) (bool, error) {
	var exists int
	err := r.q.QueryRowContext(ctx, `
		select 1 from role_groups
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

func (r roleGroupRepo) AssignRole(ctx context.Context, groupID, roleID string) error {
	_, err := r.q.ExecContext(ctx, `
		insert into role_group_roles (group_id, role_id)
		values ($1, $2)
		on conflict (group_id, role_id) do nothing
	`, groupID, roleID)
	return mapWriteError(err)
}

func (r roleGroupRepo) RemoveRole(ctx context.Context, groupID, roleID string) error {
	_, err := r.q.ExecContext(ctx, `
		delete from role_group_roles
		where group_id = $1 and role_id = $2
	`, groupID, roleID)
	return err
}

func (r roleGroupRepo) ClearRoles(ctx context.Context, groupID string) error {
	_, err := r.q.ExecContext(ctx, `delete from role_group_roles where group_id = $1`, groupID)
	return err
}

func (r roleGroupRepo) RoleIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		select role_id from role_group_roles
		where group_id = $1
		order by role_id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r roleGroupRepo) scanOne(row *sql.Row) (*auth.RoleGroup, error) {
	var (
		g        auth.RoleGroup
		tenantID sql.NullString
		desc     sql.NullString
		source   sql.NullString
	)
	err := row.Scan(&g.ID, &tenantID, &g.Name, &desc, &g.DisplayOrder, &g.IsSystem, &source, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Scope = scopeOf(tenantID)
	if desc.Valid {
		g.Description = desc.String
	}
	if source.Valid {
		g.SourceGroupID = source.String
	}
	return &g, nil
}

func (r roleGroupRepo) list(ctx context.Context, query string, args ...any) ([]*auth.RoleGroup, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.RoleGroup
	for rows.Next() {
		var (
			g        auth.RoleGroup
			tenantID sql.NullString
			desc     sql.NullString
			source   sql.NullString
		)
		if err := rows.Scan(&g.ID, &tenantID, &g.Name, &desc, &g.DisplayOrder, &g.IsSystem, &source, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Scope = scopeOf(tenantID)
		if desc.Valid {
			g.Description = desc.String
		}
		if source.Valid {
			g.SourceGroupID = source.String
		}
		result = append(result, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
