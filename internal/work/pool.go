package work

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/crisiswatch/internal/logging"
)

// Pool bounds concurrency and per-task time for a batch of tasks.
type Pool struct {
	workers     int
	taskTimeout time.Duration
	deadline    time.Duration
}

// NewPool creates a pool with the given worker count, per-task timeout and
// overall collection deadline. Zero durations disable the respective limit.
// If workers <= 0, a single worker is used.
func NewPool(workers int, taskTimeout, deadline time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers, taskTimeout: taskTimeout, deadline: deadline}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// Run executes tasks with at most p.workers in flight and returns one
// Result per task, in task order. A task that errors, panics or times out
// contributes a Result with Err set; it never aborts the batch. Tasks not yet
// started when the overall deadline passes fail with the context error.
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	if p.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	// The group context is not used: a failed task must not cancel its peers.
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = execute(ctx, p.taskTimeout, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// execute runs a single task under its own timeout.
func execute[T any](ctx context.Context, timeout time.Duration, task Task[T]) (res Result[T]) {
	res.Name = task.Name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Task panicked", "task", task.Name, "panic", r)
			var zero T
			res.Value = zero
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Dur = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if task.Run == nil {
		res.Err = fmt.Errorf("no work function")
		return res
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res.Value, res.Err = task.Run(ctx)
	return res
}
