package routing

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Settle runs fn for every index in [0, n) with at most limit calls in
// flight and waits for all of them. A failing task never cancels the others;
// the returned slice holds each task's error at its index.
// A limit <= 0 runs every task at once.
func Settle(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}

	_ = g.Wait()
	return errs
}

// Sequential runs fn for every index in order and stops at the first error.
func Sequential(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
