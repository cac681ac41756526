// Package device runs per-device work concurrently.
package device

import (
	"context"
	"runtime"
	"sync"
)

// Result is the outcome of a task for one device serial.
type Result[T any] struct {
	Serial string
	Value  T
	Err    error
}

// ForEach runs task once per serial with at most limit calls in flight and
// returns the results in the order of serials. A limit of zero or less uses
// the number of CPUs. Serials not started before ctx is done get ctx.Err().
func ForEach[T any](ctx context.Context, serials []string, limit int, task func(ctx context.Context, serial string) (T, error)) []Result[T] {
	results := make([]Result[T], len(serials))
	if len(serials) == 0 {
		return results
	}
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, serial := range serials {
		results[i].Serial = serial

		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		case sem <- struct{}{}:
		}
		// select picks at random when both cases are ready.
		if err := ctx.Err(); err != nil {
			<-sem
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, serial string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Value, results[i].Err = task(ctx, serial)
		}(i, serial)
	}

	wg.Wait()
	return results
}
