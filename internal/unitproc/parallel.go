// Package unitproc provides concurrent unit-document processing utilities.
package unitproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// ProgressFunc is called after each unit finishes, successfully or not.
type ProgressFunc func()

// ErrorFunc receives the path and error of each failed unit. Unit failures
// never stop the pool; the engine records them as skipped.
type ErrorFunc func(path string, err error)

// UnitError pairs a unit path with its processing error.
type UnitError struct {
	Path string
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e UnitError) Unwrap() error {
	return e.Err
}

// Map processes paths in parallel across a fixed-size pool, collecting
// successful results. Result order is arbitrary; callers needing
// determinism must sort. Waiting on the returned slice is the map-phase
// barrier: every unit has completed or failed by the time Map returns.
func Map[T any](ctx context.Context, paths []string, workers int, fn func(ctx context.Context, path string) (T, error), onProgress ProgressFunc, onError ErrorFunc) []T {
	if len(paths) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	results := make([]T, 0, len(paths))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(workers)
	for _, path := range paths {
		p.Go(func() {
			defer func() {
				if onProgress != nil {
					onProgress()
				}
			}()

			if err := ctx.Err(); err != nil {
				if onError != nil {
					onError(path, err)
				}
				return
			}

			result, err := fn(ctx, path)
			if err != nil {
				if onError != nil {
					onError(path, err)
				}
				return
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
	}
	p.Wait()

	return results
}
