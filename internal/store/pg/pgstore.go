package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"clavis.dev/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same repository code serves both pooled reads and transactional
// commands.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session binds the repositories to one querier.
type session struct {
	q querier
}

func (s session) Tenants() auth.TenantRepository            { return tenantRepo{s.q} }
func (s session) Permissions() auth.PermissionRepository    { return permissionRepo{s.q} }
func (s session) Roles() auth.RoleRepository                { return roleRepo{s.q} }
func (s session) RoleGroups() auth.RoleGroupRepository      { return roleGroupRepo{s.q} }
func (s session) RefreshTokens() auth.RefreshTokenRepository { return refreshTokenRepo{s.q} }
func (s session) Users() auth.UserDirectory                 { return userRepo{s.q} }

// Store is the Postgres-backed persistence layer.
type Store struct {
	session
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{session: session{q: db}, db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity, used by readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Begin opens a transaction-bound unit of work.
func (s *Store) Begin(ctx context.Context) (auth.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &storeTx{session: session{q: tx}, tx: tx}, nil
}

type storeTx struct {
	session
	tx *sql.Tx
}

func (t *storeTx) Commit() error   { return t.tx.Commit() }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }

// scopeClause builds the visibility filter for scope-aware tables: a tenant
// scope sees its own rows plus global rows, the global scope sees global
// rows only. idx is the next free placeholder; the returned args slice is
// appended to the query arguments.
func scopeClause(scope auth.Scope, idx int) (string, []any, int) {
	if tenantID, ok := scope.TenantID(); ok {
		return fmt.Sprintf("(tenant_id is null or tenant_id = $%d)", idx), []any{tenantID}, idx + 1
	}
	return "tenant_id is null", nil, idx
}

// scopeOf reconstructs a scope from a nullable tenant_id column.
func scopeOf(tenantID sql.NullString) auth.Scope {
	if tenantID.Valid {
		return auth.TenantScope(tenantID.String)
	}
	return auth.GlobalScope()
}

// tenantIDValue maps a scope back to the nullable column value.
func tenantIDValue(scope auth.Scope) sql.NullString {
	if tenantID, ok := scope.TenantID(); ok {
		return sql.NullString{String: tenantID, Valid: true}
	}
	return sql.NullString{}
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func mapWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// inPlaceholders renders "$start, $start+1, ..." for an IN clause of n
// values.
func inPlaceholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
