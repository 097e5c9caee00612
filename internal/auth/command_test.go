package auth_test

import (
	"context"
	"errors"
	"testing"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/store/memory"
)

func TestRunnerCommitsOnSuccess(t *testing.T) {
	store := memory.NewStore()
	runner := auth.NewRunner(store)
	ctx := context.Background()

	tenant := &auth.Tenant{Name: "Acme", Slug: "acme", Active: true}
	err := runner.Run(ctx, auth.NewCommand("tenant.create", func(ctx context.Context, uow auth.UnitOfWork) error {
		return uow.Tenants().Create(ctx, tenant)
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := store.Tenants().GetByID(ctx, tenant.ID); err != nil {
		t.Fatalf("committed row missing: %v", err)
	}
}

func TestRunnerRollsBackAndPropagatesError(t *testing.T) {
	store := memory.NewStore()
	runner := auth.NewRunner(store)
	ctx := context.Background()

	boom := errors.New("downstream failure")
	tenant := &auth.Tenant{Name: "Acme", Slug: "acme", Active: true}
	err := runner.Run(ctx, auth.NewCommand("tenant.create", func(ctx context.Context, uow auth.UnitOfWork) error {
		if err := uow.Tenants().Create(ctx, tenant); err != nil {
			return err
		}
		return boom
	}))
	// The original error surfaces unchanged, never wrapped by rollback
	// bookkeeping.
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if _, err := store.Tenants().GetByID(ctx, tenant.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("rolled-back row visible: %v", err)
	}
}

func TestRunnerRejectsCancelledContext(t *testing.T) {
	store := memory.NewStore()
	runner := auth.NewRunner(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executed := false
	err := runner.Run(ctx, auth.NewCommand("noop", func(ctx context.Context, uow auth.UnitOfWork) error {
		executed = true
		return nil
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if executed {
		t.Fatalf("command ran despite cancelled context")
	}
}

func TestCommandsSerialize(t *testing.T) {
	store := memory.NewStore()
	runner := auth.NewRunner(store)
	ctx := context.Background()

	// Two commands writing the same slug: exactly one commits.
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- runner.Run(ctx, auth.NewCommand("tenant.create", func(ctx context.Context, uow auth.UnitOfWork) error {
				return uow.Tenants().Create(ctx, &auth.Tenant{Name: "Acme", Slug: "acme", Active: true})
			}))
		}()
	}
	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			if !errors.Is(err, auth.ErrConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one conflict, got %d", failures)
	}
}
