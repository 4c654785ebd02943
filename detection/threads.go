package detection

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// NumThreads resolves a requested worker count: n <= 0 means one worker per CPU.
func NumThreads(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// parallelChunks splits [0, n) into at most threads contiguous chunks and
// runs fn on each of them on a bounded worker pool.
func parallelChunks(n, threads int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	threads = min(NumThreads(threads), n)
	if threads == 1 {
		return fn(0, n)
	}
	var g errgroup.Group
	g.SetLimit(threads)
	chunk := (n + threads - 1) / threads
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
