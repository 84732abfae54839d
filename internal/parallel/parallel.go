// Package parallel provides chunked fan-out helpers for per-agent loops.
// Work is split into fixed-size contiguous chunks pulled by a small worker
// pool; callers block until every chunk has finished.
package parallel

import (
	"runtime"
	"sync"

	"github.com/talgya/outbreak-sim/internal/rng"
)

// ChunkSize is the number of indices a worker claims at a time. It is
// fixed (rather than derived from the worker count) so per-chunk random
// streams stay stable no matter how many workers run.
const ChunkSize = 1024

// For runs fn over contiguous sub-ranges of [0, n) and returns once all of
// them completed. workers <= 0 uses GOMAXPROCS.
func For(n, workers int, fn func(lo, hi int)) {
	forChunks(n, workers, func(chunk, lo, hi int) {
		fn(lo, hi)
	})
}

// ForRNG runs fn for every index in [0, n), handing each chunk its own
// deterministically seeded stream. For a given n and seed the index-to-draw
// mapping is identical regardless of the worker count.
func ForRNG(n, workers int, seed int64, fn func(i int, s *rng.Stream)) {
	forChunks(n, workers, func(chunk, lo, hi int) {
		s := rng.ForTask(seed, uint64(chunk))
		for i := lo; i < hi; i++ {
			fn(i, s)
		}
	})
}

func forChunks(n, workers int, fn func(chunk, lo, hi int)) {
	if n <= 0 {
		return
	}
	nchunks := (n + ChunkSize - 1) / ChunkSize
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nchunks {
		workers = nchunks
	}

	chunks := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for c := range chunks {
				lo := c * ChunkSize
				hi := lo + ChunkSize
				if hi > n {
					hi = n
				}
				fn(c, lo, hi)
			}
		}()
	}
	for c := 0; c < nchunks; c++ {
		chunks <- c
	}
	close(chunks)
	wg.Wait()
}
