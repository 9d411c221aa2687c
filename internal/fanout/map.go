package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item with at most limit calls in flight and returns the
// results in input order. A limit below 1 runs one call at a time. fn cannot fail;
// callers fold per-item failures into R.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) R) []R {
	if limit < 1 {
		limit = 1
	}
	results := make([]R, len(items))

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, item := range items {
		eg.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
