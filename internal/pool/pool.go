// Package pool runs independent units of work with bounded concurrency.
package pool

import (
	"context"
	"fmt"
	"sync"
)

// Result holds the outcome of one unit of work. Exactly one of Value or
// Err is meaningful; a worker failure (returned error or panic) is
// captured here instead of aborting the batch.
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs worker over every item with at most concurrency workers in
// flight. Results are returned in input order regardless of completion
// order. Items are dispatched FIFO as worker slots free up.
//
// If ctx is cancelled, items not yet started complete with ctx.Err();
// items already in flight run to completion, so a batch is always fully
// accounted for.
func Map[T, R any](ctx context.Context, items []T, concurrency int, worker func(ctx context.Context, item T) (R, error)) []Result[R] {
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = runOne(ctx, items[i], worker)
			}
		}()
	}

	for i := range items {
		select {
		case indexes <- i:
		case <-ctx.Done():
			results[i] = Result[R]{Err: ctx.Err()}
		}
	}
	close(indexes)
	wg.Wait()

	return results
}

// runOne executes worker for a single item, converting a panic into an
// error-shaped result so one item can never take down the batch.
func runOne[T, R any](ctx context.Context, item T, worker func(ctx context.Context, item T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: fmt.Errorf("worker panic: %v", r)}
		}
	}()

	value, err := worker(ctx, item)
	return Result[R]{Value: value, Err: err}
}
