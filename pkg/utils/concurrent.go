// Package utils holds the small concurrency primitives shared by the
// enrichment fan-out: a bounded worker pool and panic containment.
package utils

import (
	"context"
	"sync"
)

// DefaultConcurrency bounds worker fan-out when the caller does not pick a
// limit.
const DefaultConcurrency = 8

// Worker processes one item and produces one result.
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool fans a slice of items out across a fixed number of goroutines.
//
// Workers read from an internal channel until it is drained or the context
// is cancelled; ProcessItems blocks until every worker has returned. Panics
// inside a worker are recovered and surface as a PanicError in the errors
// slice, aligned by item index with the results.
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

// NewWorkerPool creates a pool. A non-positive worker count falls back to
// DefaultConcurrency.
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = DefaultConcurrency
	}
	return &WorkerPool[T, R]{numWorkers: numWorkers, worker: worker}
}

// ProcessItems runs the worker over every item and gathers results and
// errors positionally. Items not reached before cancellation carry the
// context error.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	type indexed struct {
		item  T
		index int
	}
	itemsChan := make(chan indexed, len(items))
	for i, item := range items {
		itemsChan <- indexed{item: item, index: i}
	}
	close(itemsChan)

	results := make([]R, len(items))
	errors := make([]error, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < wp.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case item, ok := <-itemsChan:
					if !ok {
						return
					}
					func() {
						defer RecoverWithCallback(func(err error) {
							mu.Lock()
							errors[item.index] = err
							mu.Unlock()
						})
						results[item.index], errors[item.index] = wp.worker(ctx, item.item)
					}()
				case <-ctx.Done():
					// Mark everything still queued as cancelled.
					for item := range itemsChan {
						errors[item.index] = ctx.Err()
					}
					return
				}
			}
		}()
	}

	wg.Wait()
	return results, errors
}
