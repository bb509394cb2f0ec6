package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// job is one unit of network work: a page fetch (index < 0) or the payload
// at index of target.
type job struct {
	target *Target
	index  int
}

// workerPool runs jobs on a fixed set of goroutines. close is the barrier:
// it returns only once every submitted job has finished.
type workerPool struct {
	workers int
	jobs    chan job
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// newWorkerPool creates a pool for total jobs. With workers <= 0, or more
// workers than jobs, there is one goroutine per job.
func newWorkerPool(workers, total int, logger *slog.Logger) *workerPool {
	if workers <= 0 || workers > total {
		workers = total
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &workerPool{
		workers: workers,
		jobs:    make(chan job, workers*2),
		logger:  logger,
	}
}

// start launches all worker goroutines.
func (p *workerPool) start(ctx context.Context, run func(context.Context, job)) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, run)
	}
}

func (p *workerPool) worker(ctx context.Context, run func(context.Context, job)) {
	defer p.wg.Done()

	for j := range p.jobs {
		// Recover from panics so one bad job does not crash the pool.
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker recovered from panic",
						"target", j.target.URL,
						"index", j.index,
						"panic", fmt.Sprintf("%v", r),
					)
				}
			}()
			run(ctx, j)
		}()
	}
}

// submit adds a job to the queue. It blocks if the jobs channel is full.
func (p *workerPool) submit(j job) {
	p.jobs <- j
}

// close signals that no more jobs will be submitted and waits for all
// workers to finish.
func (p *workerPool) close() {
	close(p.jobs)
	p.wg.Wait()
}
