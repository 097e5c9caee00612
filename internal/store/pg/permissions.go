package pg

import (
	"context"
	"database/sql"
	"errors"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type permissionRepo struct {
	q querier
}

// Ensure inserts missing catalog rows. Existing names are left as-is so the
// seed can run on every deploy.
func (r permissionRepo) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		id := p.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := r.q.ExecContext(ctx, `
			insert into permissions (id, name, display_name, permission_group, description)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing
		`, id, p.Name, p.DisplayName, string(p.Group), p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r permissionRepo) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := r.q.QueryContext(ctx, `
		select id, name, display_name, permission_group, description, created_at
		from permissions
		order by permission_group, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		var (
			p     auth.Permission
			group string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &group, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Group = auth.PermissionGroup(group)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r permissionRepo) GetByName(ctx context.Context, name string) (*auth.Permission, error) {
	var (
		p     auth.Permission
		group string
	)
	err := r.q.QueryRowContext(ctx, `
		select id, name, display_name, permission_group, description, created_at
		from permissions
		where name = $1
	`, name).Scan(&p.ID, &p.Name, &p.DisplayName, &group, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Group = auth.PermissionGroup(group)
	return &p, nil
}
