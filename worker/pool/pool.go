package pool

import (
	"context"
)

// WorkerPool bounds the number of jobs executing at once across all
// partition claims. Each slot runs one job at a time.
type WorkerPool struct {
	sem chan struct{}
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Do runs job once a slot is free. Blocking here keeps message acknowledge
// ordering intact: the caller only marks a message after job returns.
func (p *WorkerPool) Do(ctx context.Context, job func() error) error {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
		return job()
	case <-ctx.Done():
		return ctx.Err()
	}
}
