// Package work runs batches of independent tasks on a bounded pool.
//
// Workers never share mutable state: each task's outcome lands in its own
// slot of the returned slice, and the caller aggregates sequentially after
// the batch finishes.
package work

import (
	"context"
	"time"
)

// Task is one unit of work in a batch.
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result is the outcome of a single task. Exactly one of Value or Err is
// meaningful; a failed task keeps the zero Value.
type Result[T any] struct {
	Name  string
	Value T
	Err   error
	Dur   time.Duration
}

// Stats summarizes a finished batch.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// Summarize counts successes and failures in results.
func Summarize[T any](results []Result[T], elapsed time.Duration) Stats {
	s := Stats{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Completed++
		}
	}
	return s
}
