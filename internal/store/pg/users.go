package pg

import (
	"context"
	"database/sql"
	"errors"

	"clavis.dev/internal/auth"
)

// userRepo reads the identity collaborator's account tables. Accounts are
// never written from here.
type userRepo struct {
	q querier
}

const userColumns = `id, tenant_id, email, password_hash, first_name, last_name, active, created_at, updated_at`

func (r userRepo) GetByID(ctx context.Context, id string) (*auth.UserAccount, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id))
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*auth.UserAccount, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where lower(email) = lower($1)
	`, email))
}

func (r userRepo) List(ctx context.Context, tenantID string) ([]*auth.UserAccount, error) {
	rows, err := r.q.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where tenant_id = $1
		order by email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.UserAccount
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r userRepo) RoleNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		select r.name
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
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

func (r userRepo) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		select distinct p.name
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by p.name
	`, userID)
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

// EffectivePermissionsBatch resolves all users in one aggregated query, not
// one round trip per user.
func (r userRepo) EffectivePermissionsBatch(ctx context.Context, userIDs []string) (map[string][]string, error) {
	if len(userIDs) == 0 {
		return map[string][]string{}, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx, `
		select distinct ur.user_id, p.name
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id in (`+inPlaceholders(1, len(userIDs))+`)
		order by ur.user_id, p.name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string, len(userIDs))
	for rows.Next() {
		var userID, name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, err
		}
		result[userID] = append(result[userID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r userRepo) scanOne(row *sql.Row) (*auth.UserAccount, error) {
	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(scan func(dest ...any) error) (*auth.UserAccount, error) {
	var (
		u         auth.UserAccount
		tenantID  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
	)
	if err := scan(&u.ID, &tenantID, &u.Email, &u.PasswordHash, &firstName, &lastName, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if tenantID.Valid {
		u.TenantID = tenantID.String
	}
	if firstName.Valid {
		u.FirstName = firstName.String
	}
	if lastName.Valid {
		u.LastName = lastName.String
	}
	return &u, nil
}
