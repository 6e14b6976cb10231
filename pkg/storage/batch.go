package storage

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultDeleteConcurrency bounds DeleteEach for services without a batch delete call
const DefaultDeleteConcurrency = 8

// DeleteEach deletes keys one by one with bounded concurrency and keeps every key's result.
// Results are in the order of keys
func DeleteEach(ctx context.Context, keys []string, limit int, del func(ctx context.Context, key string) error) ([]DeleteResult, error) {
	if limit <= 0 {
		limit = DefaultDeleteConcurrency
	}

	results := make([]DeleteResult, len(keys))
	g := &errgroup.Group{}
	g.SetLimit(limit)

	for i, key := range keys {
		g.Go(func() error {
			// Failures are recorded per key and never cancel the rest of the batch
			results[i] = DeleteResult{Key: key, Err: del(ctx, key)}
			return nil
		})
	}
	_ = g.Wait()

	return results, BatchResult(results)
}
