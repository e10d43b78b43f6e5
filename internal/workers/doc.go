/*
Package workers sizes and runs the worker pools used for cover generation.

Worker counts derive from runtime.GOMAXPROCS rather than runtime.NumCPU, so
a container limited to two CPUs on a large host gets two workers per
multiplier unit, not one per host core:

	n := workers.ForCPU(8)  // image decoding and resizing
	n := workers.ForIO(16)  // reading archives and book files
	n := workers.ForMixed(12)

Every helper caps the result at its limit argument (0 means no cap) and
never returns less than one. Operators can pin the count with the
COVER_WORKERS environment variable; the cap still applies.

Run feeds a slice to n goroutines and waits for them:

	workers.Run(ctx, workers.ForMixed(8), books, func(ctx context.Context, b *book.Book) {
		_, _ = cache.Get(ctx, b.File())
	})

Cancelling ctx stops handing out items; calls already running finish.
*/
package workers
