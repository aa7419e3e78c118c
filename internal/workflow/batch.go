package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/stepflow/internal/state"
)

// DefaultConcurrency bounds RunBatch when no limit is given.
const DefaultConcurrency = 4

// BatchResult is the outcome of one run in a batch.
type BatchResult struct {
	State state.TaskState
	Err   error
}

// RunBatch runs independent tasks concurrently with at most limit runs in
// flight. Results are in input order. A failed run does not stop the others;
// cancelling ctx stops them all.
func (r *Runner) RunBatch(ctx context.Context, tasks []state.TaskState, limit int) []BatchResult {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]BatchResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, task := range tasks {
		g.Go(func() error {
			st, err := r.Run(ctx, task)
			results[i] = BatchResult{State: st, Err: err}
			return nil // Run errors are reported per task
		})
	}

	_ = g.Wait()
	return results
}
