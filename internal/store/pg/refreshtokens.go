package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/ids"
)

type refreshTokenRepo struct {
	q querier
}

func (r refreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	_, err := r.q.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, issued_at, expires_at)
		values ($1, $2, $3, $4, $5)
	`, t.ID, t.UserID, t.Token, t.IssuedAt, t.ExpiresAt)
	return mapWriteError(err)
}

func (r refreshTokenRepo) GetByToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	var (
		t        auth.RefreshToken
		revoked  sql.NullTime
		replaced sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		select id, user_id, token, issued_at, expires_at, revoked_at, replaced_by_token
		from refresh_tokens
		where token = $1
	`, token).Scan(&t.ID, &t.UserID, &t.Token, &t.IssuedAt, &t.ExpiresAt, &revoked, &replaced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revoked.Valid {
		at := revoked.Time
		t.RevokedAt = &at
	}
	if replaced.Valid {
		t.ReplacedByToken = replaced.String
	}
	return &t, nil
}

// MarkRotated is the rotation linearization point: the conditional update
// transitions the row only while it is still active, so of any set of
// concurrent rotations exactly one observes rows-affected = 1.
func (r refreshTokenRepo) MarkRotated(ctx context.Context, token, successor string, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2, replaced_by_token = $3
		where token = $1 and revoked_at is null and expires_at > $2
	`, token, now, successor)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}

func (r refreshTokenRepo) MarkRevoked(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where token = $1 and revoked_at is null and expires_at > $2
	`, token, now)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}
