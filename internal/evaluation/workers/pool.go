package workers

import "sync"

// WorkerPool manages a bounded set of worker goroutines
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// Stream runs fn for every job on the pool and delivers results in completion order.
// The returned channel is closed once every job has produced its result.
// Callers must drain the channel.
func Stream[T, R any](wp *WorkerPool, jobs []T, fn func(T) R) <-chan R {
	results := make(chan R, len(jobs))
	if len(jobs) == 0 {
		close(results)
		return results
	}

	queue := make(chan T, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	numActualWorkers := wp.numWorkers
	if len(jobs) < numActualWorkers {
		numActualWorkers = len(jobs) // Don't spawn more workers than jobs
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				results <- fn(job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
