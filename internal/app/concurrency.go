package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Outcome is the value or error of one function run by FanOut.
type Outcome[T any] struct {
	Value T
	Err   error
}

// FanOut runs every fn with at most limit in flight and returns their
// outcomes in input order. Failures are collected, never propagated: one
// failing fn does not cancel the rest. A fn still waiting for a slot when ctx
// ends is skipped with ctx.Err().
//
// ctx is handed to each fn unchanged, ambient scope included. A limit of
// zero or less runs them all at once.
func FanOut[T any](ctx context.Context, limit int, fns ...func(context.Context) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(fns))
	if len(fns) == 0 {
		return out
	}

	if limit <= 0 || limit > len(fns) {
		limit = len(fns)
	}

	sem := semaphore.NewWeighted(int64(limit))

	var wg sync.WaitGroup

	for i, fn := range fns {
		wg.Go(func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				out[i].Err = err
				return
			}
			defer sem.Release(1)

			out[i].Value, out[i].Err = fn(ctx)
		})
	}

	wg.Wait()

	return out
}
