// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold 以下の行数では goroutine を起動しない
const DefaultThreshold = 256

// ParallelizeWorkers divides items into contiguous ranges [start, end) and
// runs fn on them with at most workers goroutines.
// workers <= 0 means runtime.NumCPU().
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items // No need for more workers than items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold; otherwise fn runs once over the whole range.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	ParallelizeWorkers(items, workers, fn)
}
