package work

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesTaskOrder(t *testing.T) {
	p := NewPool(3, time.Second, 5*time.Second)

	tasks := make([]Task[int], 10)
	for i := range tasks {
		n := i
		tasks[i] = Task[int]{
			Name: "t",
			Run: func(ctx context.Context) (int, error) {
				// Later tasks finish first.
				time.Sleep(time.Duration(10-n) * time.Millisecond)
				return n * n, nil
			},
		}
	}

	results := Run(context.Background(), p, tasks)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("task %d: unexpected error %v", i, r.Err)
		}
		if r.Value != i*i {
			t.Errorf("task %d: value = %d, want %d", i, r.Value, i*i)
		}
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	p := NewPool(5, time.Second, 5*time.Second)

	var inFlight, peak atomic.Int32
	tasks := make([]Task[struct{}], 20)
	for i := range tasks {
		tasks[i] = Task[struct{}]{Run: func(ctx context.Context) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}}
	}

	Run(context.Background(), p, tasks)
	if got := peak.Load(); got > 5 {
		t.Errorf("peak concurrency = %d, want <= 5", got)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	p := NewPool(2, time.Second, 5*time.Second)
	boom := errors.New("boom")

	tasks := []Task[string]{
		{Name: "ok", Run: func(ctx context.Context) (string, error) { return "a", nil }},
		{Name: "err", Run: func(ctx context.Context) (string, error) { return "", boom }},
		{Name: "panic", Run: func(ctx context.Context) (string, error) { panic("bad feed") }},
		{Name: "nil"},
		{Name: "ok2", Run: func(ctx context.Context) (string, error) { return "b", nil }},
	}

	results := Run(context.Background(), p, tasks)

	if results[0].Value != "a" || results[4].Value != "b" {
		t.Errorf("healthy tasks lost: %+v", results)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("err task: got %v", results[1].Err)
	}
	if results[2].Err == nil {
		t.Error("panic task should report an error")
	}
	if results[3].Err == nil {
		t.Error("task without function should report an error")
	}

	stats := Summarize(results, 0)
	if stats.Completed != 2 || stats.Failed != 3 || stats.Total != 5 {
		t.Errorf("Summarize = %+v", stats)
	}
}

func TestRunTaskTimeout(t *testing.T) {
	p := NewPool(2, 20*time.Millisecond, time.Second)

	tasks := []Task[int]{
		{Name: "slow", Run: func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		}},
		{Name: "fast", Run: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	results := Run(context.Background(), p, tasks)
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("slow task err = %v, want deadline exceeded", results[0].Err)
	}
	if results[1].Value != 2 || results[1].Err != nil {
		t.Errorf("fast task = %+v", results[1])
	}
}

func TestRunOverallDeadline(t *testing.T) {
	p := NewPool(1, 0, 30*time.Millisecond)

	block := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	tasks := []Task[int]{{Run: block}, {Run: block}, {Run: block}}

	start := time.Now()
	results := Run(context.Background(), p, tasks)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("batch took %v, deadline not enforced", elapsed)
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("task %d should fail after the deadline", i)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	results := Run[int](context.Background(), NewPool(0, 0, 0), nil)
	if len(results) != 0 {
		t.Errorf("got %d results for empty batch", len(results))
	}
}
