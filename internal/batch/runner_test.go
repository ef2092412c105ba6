package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunReturnsResultsInTaskOrder(t *testing.T) {
	tasks := make([]func(context.Context) int, 20)
	for i := range tasks {
		i := i
		tasks[i] = func(context.Context) int {
			// Later tasks finish earlier to force out-of-order completion.
			time.Sleep(time.Duration(20-i) * time.Millisecond)
			return i * 10
		}
	}

	results := Run(context.Background(), tasks, 4)
	if len(results) != len(tasks) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(tasks))
	}
	for i, got := range results {
		if got != i*10 {
			t.Fatalf("results[%d] = %d, want %d", i, got, i*10)
		}
	}
}

func TestRunNeverExceedsLimit(t *testing.T) {
	const limit = 3

	var running, peak atomic.Int64
	tasks := make([]func(context.Context) struct{}, 16)
	for i := range tasks {
		tasks[i] = func(context.Context) struct{} {
			now := running.Add(1)
			for {
				p := peak.Load()
				if now <= p || peak.CompareAndSwap(p, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}
		}
	}

	Run(context.Background(), tasks, limit)
	if got := peak.Load(); got > limit {
		t.Fatalf("peak concurrency = %d, want <= %d", got, limit)
	}
	if got := peak.Load(); got == 0 {
		t.Fatalf("no task observed running")
	}
}

func TestRunDoesNotAbortOnFailure(t *testing.T) {
	type outcome struct {
		n   int
		err error
	}
	boom := errors.New("boom")
	tasks := make([]func(context.Context) outcome, 6)
	for i := range tasks {
		i := i
		tasks[i] = func(context.Context) outcome {
			if i == 2 {
				return outcome{err: boom}
			}
			return outcome{n: i}
		}
	}

	results := Run(context.Background(), tasks, 2)
	for i, res := range results {
		if i == 2 {
			if !errors.Is(res.err, boom) {
				t.Fatalf("results[2].err = %v, want boom", res.err)
			}
			continue
		}
		if res.err != nil {
			t.Fatalf("results[%d].err = %v, want nil", i, res.err)
		}
		if res.n != i {
			t.Fatalf("results[%d].n = %d, want %d", i, res.n, i)
		}
	}
}

func TestRunLimitLargerThanTasks(t *testing.T) {
	tasks := []func(context.Context) string{
		func(context.Context) string { return "a" },
		func(context.Context) string { return "b" },
	}
	results := Run(context.Background(), tasks, 10)
	if fmt.Sprint(results) != "[a b]" {
		t.Fatalf("results = %v, want [a b]", results)
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	results := Run[int](context.Background(), nil, 4)
	if len(results) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(results))
	}
}

func TestRunZeroLimitStillCompletes(t *testing.T) {
	tasks := []func(context.Context) int{
		func(context.Context) int { return 1 },
		func(context.Context) int { return 2 },
	}
	results := Run(context.Background(), tasks, 0)
	if results[0] != 1 || results[1] != 2 {
		t.Fatalf("results = %v, want [1 2]", results)
	}
}
