package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func coverage(t *testing.T, items int, run func(fn func(start, end int))) {
	t.Helper()

	seen := make([]int, items)
	var mu sync.Mutex
	run(func(start, end int) {
		mu.Lock()
		defer mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d visited %d times", i, n)
	}
}

func TestParallelizeWorkers_CoversEveryIndexOnce(t *testing.T) {
	for _, tc := range []struct{ items, workers int }{
		{1, 4}, {7, 3}, {100, 8}, {4128, 0}, {10, 1},
	} {
		coverage(t, tc.items, func(fn func(int, int)) {
			ParallelizeWorkers(tc.items, tc.workers, fn)
		})
	}
}

func TestParallelize_ZeroItems(t *testing.T) {
	called := false
	ParallelizeWorkers(0, 4, func(int, int) { called = true })
	ParallelizeWithThreshold(0, 10, 4, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int
	ParallelizeWithThreshold(5, 10, 4, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, 1, calls)

	coverage(t, 50, func(fn func(int, int)) {
		ParallelizeWithThreshold(50, 10, 4, fn)
	})
}
