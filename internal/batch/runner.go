// Package batch provides a bounded worker-pool executor for lists of
// independent unit tasks.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Run executes every task with at most limit running simultaneously and
// returns one result per task, position i of the output corresponding to
// tasks[i] regardless of completion order.
//
// Tasks must return their own failures as values; Run never aborts the
// batch because one task failed. Workers share a cursor over the task list:
// each claims the next unclaimed index, awaits that task, then claims again
// until the list is exhausted.
func Run[T any](ctx context.Context, tasks []func(context.Context) T, limit int) []T {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > len(tasks) {
		limit = len(tasks)
	}

	var cursor atomic.Int64
	cursor.Store(-1)

	var wg sync.WaitGroup
	wg.Add(limit)
	for w := 0; w < limit; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1))
				if i >= len(tasks) {
					return
				}
				results[i] = tasks[i](ctx)
			}
		}()
	}
	wg.Wait()
	return results
}
