// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"sync"
	"time"
)

// RunBatched partitions items into batches of batchSize, runs fn over each
// batch with at most concurrencyLimit goroutines in flight, and sleeps
// batchDelay between batches. This is the fan-out pattern every coordinator
// in the catalog uses (spec.md §4.5.4): resolve inventory, batch, bounded
// concurrency within a batch, pace between batches.
func RunBatched[T any](ctx context.Context, items []T, batchSize, concurrencyLimit int, batchDelay time.Duration, fn func(ctx context.Context, item T)) {
	RunBatchedWithWait(ctx, items, batchSize, concurrencyLimit, batchDelay, nil, fn)
}

// RunBatchedWithWait is RunBatched plus an onWait observer called with the
// time each item spent blocked on the batch's concurrency-limit semaphore
// before its goroutine started. Every coordinator's outermost fan-out is
// over organizations, so this is what backs org_collection_wait_time_seconds
// (spec.md §4.6) to make per-org queueing visible; onWait may be nil.
func RunBatchedWithWait[T any](ctx context.Context, items []T, batchSize, concurrencyLimit int, batchDelay time.Duration, onWait func(time.Duration), fn func(ctx context.Context, item T)) {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	if concurrencyLimit <= 0 {
		concurrencyLimit = 1
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		sem := make(chan struct{}, concurrencyLimit)
		var wg sync.WaitGroup
		for _, item := range batch {
			if ctx.Err() != nil {
				wg.Wait()
				return
			}
			wg.Add(1)
			queuedAt := time.Now()
			sem <- struct{}{}
			if onWait != nil {
				onWait(time.Since(queuedAt))
			}
			go func(it T) {
				defer wg.Done()
				defer func() { <-sem }()
				fn(ctx, it)
			}(item)
		}
		wg.Wait()

		if end < len(items) && batchDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(batchDelay):
			}
		}
	}
}
