package plandag

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// RunFunc executes a single subtask and returns its terminal status.
type RunFunc func(ctx context.Context, st models.Subtask) error

// RunLevelSequential runs a level's subtasks one at a time in the order
// given, stopping at the first failure. This is the default execution
// mode.
func RunLevelSequential(ctx context.Context, level []models.Subtask, run RunFunc) error {
	for _, st := range level {
		if err := run(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// RunLevelConcurrent runs every subtask in a level simultaneously via
// errgroup, cancelling the remaining subtasks' context as soon as one
// fails. Opt-in mode for levels whose subtasks are known independent.
func RunLevelConcurrent(ctx context.Context, level []models.Subtask, run RunFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range level {
		st := st
		g.Go(func() error {
			return run(gctx, st)
		})
	}
	return g.Wait()
}
