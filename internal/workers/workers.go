package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "COVER_WORKERS"

// Count returns the number of workers for a task type, derived from
// GOMAXPROCS (which follows container CPU limits) times multiplier, at least
// one and at most limit. A limit of 0 means no cap. COVER_WORKERS overrides
// the calculation but not the cap.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns one worker per CPU, capped at limit.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns two workers per CPU, capped at limit.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns one and a half workers per CPU, capped at limit.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Run calls fn for every item using n goroutines and returns once all calls
// have finished. Items not yet started when ctx is cancelled are skipped.
func Run[T any](ctx context.Context, n int, items []T, fn func(context.Context, T)) {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	jobs := make(chan T)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				fn(ctx, item)
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}
