package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"clavis.dev/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestMarkRotatedReportsTransition(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("update refresh_tokens").
		WithArgs("old-token", now, "new-token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.RefreshTokens().MarkRotated(context.Background(), "old-token", "new-token", now)
	if err != nil {
		t.Fatalf("MarkRotated: %v", err)
	}
	if !ok {
		t.Fatalf("expected transition to be reported")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkRotatedLosesRace(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	// Zero rows affected: the row was already spent or expired.
	mock.ExpectExec("update refresh_tokens").
		WithArgs("old-token", now, "new-token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.RefreshTokens().MarkRotated(context.Background(), "old-token", "new-token", now)
	if err != nil {
		t.Fatalf("MarkRotated: %v", err)
	}
	if ok {
		t.Fatalf("lost race reported as transition")
	}
}

func TestGetRoleScopesQuery(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "is_system", "created_at", "updated_at"}).
		AddRow("role-1", "tenant-a", "Auditor", nil, false, now, now)
	mock.ExpectQuery("(?s)select id, tenant_id, name, description, is_system.*from roles.*tenant_id is null or tenant_id =").
		WithArgs("role-1", "tenant-a").
		WillReturnRows(rows)
	mock.ExpectQuery("select permission_id from role_permissions").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"permission_id"}).AddRow("perm-1"))

	role, err := store.Roles().GetByID(context.Background(), "role-1", auth.TenantScope("tenant-a"))
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if tenantID, ok := role.Scope.TenantID(); !ok || tenantID != "tenant-a" {
		t.Fatalf("scope not reconstructed: %v", role.Scope)
	}
	if len(role.PermissionIDs) != 1 {
		t.Fatalf("links not loaded: %v", role.PermissionIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGlobalScopeSeesOnlyGlobalRows(t *testing.T) {
	store, mock := newMockStore(t)

	// The global filter carries no tenant argument at all.
	mock.ExpectQuery("(?s)from roles.*where tenant_id is null").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "is_system", "created_at", "updated_at"}))

	roles, err := store.Roles().List(context.Background(), auth.GlobalScope())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("unexpected rows: %d", len(roles))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIsNameUniqueExcludesSelf(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from roles").
		WithArgs("Auditor", sqlmock.AnyArg(), "role-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	unique, err := store.Roles().IsNameUnique(context.Background(), "Auditor", auth.TenantScope("tenant-a"), "role-1")
	if err != nil {
		t.Fatalf("IsNameUnique: %v", err)
	}
	if !unique {
		t.Fatalf("expected name to be free when only holder is excluded")
	}
}

func TestCreateRoleMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into roles").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Roles().Create(context.Background(), &auth.Role{Name: "Auditor", Scope: auth.TenantScope("t1")})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("unique violation not mapped: %v", err)
	}

	mock.ExpectQuery("insert into roles").
		WillReturnError(errors.New("driver failure"))
	err = store.Roles().Create(context.Background(), &auth.Role{Name: "Auditor", Scope: auth.TenantScope("t1")})
	if err == nil || errors.Is(err, auth.ErrConflict) {
		t.Fatalf("non-pg errors must pass through, got %v", err)
	}
}

func TestEffectivePermissionsBatchSingleQuery(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"user_id", "name"}).
		AddRow("u1", "Users.Read").
		AddRow("u1", "Reports.View").
		AddRow("u2", "Users.Read")
	mock.ExpectQuery("select distinct ur.user_id, p.name").
		WithArgs("u1", "u2", "u3").
		WillReturnRows(rows)

	got, err := store.Users().EffectivePermissionsBatch(context.Background(), []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("EffectivePermissionsBatch: %v", err)
	}
	if len(got["u1"]) != 2 || len(got["u2"]) != 1 {
		t.Fatalf("unexpected resolution: %v", got)
	}
	if _, ok := got["u3"]; ok {
		t.Fatalf("memberless user should be absent from raw result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBeginRoutesThroughTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update refresh_tokens").
		WithArgs("old", now, "new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ok, err := tx.RefreshTokens().MarkRotated(context.Background(), "old", "new", now)
	if err != nil || !ok {
		t.Fatalf("MarkRotated in tx: ok=%v err=%v", ok, err)
	}
	err = tx.RefreshTokens().Create(context.Background(), &auth.RefreshToken{
		UserID:    "u1",
		Token:     "new",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTenantIsSlugUnique(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from tenants").
		WithArgs("acme", "").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	unique, err := store.Tenants().IsSlugUnique(context.Background(), "acme", "")
	if err != nil {
		t.Fatalf("IsSlugUnique: %v", err)
	}
	if unique {
		t.Fatalf("taken slug reported unique")
	}
}
