package pg

import (
	"context"
	"database/sql"
	"errors"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type tenantRepo struct {
	q querier
}

func (r tenantRepo) Create(ctx context.Context, t *auth.Tenant) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	row := r.q.QueryRowContext(ctx, `
		insert into tenants (id, name, slug, active)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, t.ID, t.Name, t.Slug, t.Active)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r tenantRepo) GetByID(ctx context.Context, id string) (*auth.Tenant, error) {
	return r.get(ctx, `where id = $1`, id)
}

func (r tenantRepo) GetBySlug(ctx context.Context, slug string) (*auth.Tenant, error) {
	return r.get(ctx, `where slug = $1`, slug)
}

func (r tenantRepo) get(ctx context.Context, where string, arg any) (*auth.Tenant, error) {
	var t auth.Tenant
	err := r.q.QueryRowContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from tenants `+where,
		arg).Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r tenantRepo) List(ctx context.Context) ([]*auth.Tenant, error) {
	rows, err := r.q.QueryContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from tenants
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.Tenant
	for rows.Next() {
		var t auth.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r tenantRepo) IsSlugUnique(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists int
	err := r.q.QueryRowContext(ctx, `
		select 1 from tenants
		where slug = $1 and id <> $2
	`, slug, excludeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (r tenantRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx, `
		update tenants set active = $2, updated_at = now()
		where id = $1
	`, id, active)
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
