package tasks

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds a [Pool] created with a non-positive size.
const DefaultWorkers = 4

// Pool runs submitted functions with bounded parallelism.
//
// Go never blocks the caller; queued functions wait for a slot on their own goroutine.
type Pool struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewPool creates a pool running at most size functions at once.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Go schedules fn.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	p.pending.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.pending.Add(-1)
		// Acquire only fails on a cancelled context
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Pending counts submitted functions that have not returned yet.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Wait blocks until every submitted function has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
