package common

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// maxParallelChunks bounds the number of tasks queued for a single ParallelRange call.
// It matches the queue size the pools are created with.
const maxParallelChunks = 256

// ParallelRange splits [0, n) into contiguous chunks and runs fn on each chunk through pool,
// blocking until every chunk has finished. Chunks never overlap, so fn may write to
// disjoint per-index regions of shared buffers without locking.
// A nil pool or a range smaller than minChunk runs fn inline.
//
// Parameters:
//   - pool: the worker pool to submit chunks to, may be nil
//   - n: the size of the range
//   - minChunk: the smallest chunk worth handing to a worker
//   - fn: the work for the half-open range [start, end)
func ParallelRange(pool worker.DynamicWorkerPool, n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if pool == nil || n <= minChunk {
		fn(0, n)
		return
	}

	chunk := max(minChunk, CeilDiv(n, maxParallelChunks))

	var wg sync.WaitGroup
	id := 0
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		s, e := start, end
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(s, e)
				return nil, nil
			},
		})
		id++
	}
	wg.Wait()
}
