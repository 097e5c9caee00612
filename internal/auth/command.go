package auth

import (
	"context"
	"fmt"

	"clavis.dev/internal/obs"
)

// Command is a state-mutating operation. Implementing Command is the
// structural marker that routes an operation through a transaction; read
// paths never implement it and are never wrapped.
type Command interface {
	// Name identifies the command in logs.
	Name() string
	Execute(ctx context.Context, uow UnitOfWork) error
}

// Runner executes commands inside a transaction: begin, execute, commit.
// Any failure rolls the transaction back and re-propagates the original
// error unchanged.
type Runner struct {
	store Store
}

// NewRunner constructs a Runner over the given store.
func NewRunner(store Store) *Runner {
	return &Runner{store: store}
}

// funcCommand adapts a closure into a Command.
type funcCommand struct {
	name string
	fn   func(ctx context.Context, uow UnitOfWork) error
}

// NewCommand wraps fn as a named Command.
func NewCommand(name string, fn func(ctx context.Context, uow UnitOfWork) error) Command {
	return funcCommand{name: name, fn: fn}
}

func (c funcCommand) Name() string { return c.name }

func (c funcCommand) Execute(ctx context.Context, uow UnitOfWork) error {
	return c.fn(ctx, uow)
}

// Run executes cmd transactionally. Cancellation mid-transaction rolls back
// fully; a commit failure surfaces as-is.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", cmd.Name(), err)
	}
	if err := cmd.Execute(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			obs.LogRequest(map[string]any{
				"level":   "error",
				"msg":     "rollback failed",
				"command": cmd.Name(),
				"error":   rbErr.Error(),
			})
		}
		return err
	}
	return tx.Commit()
}
