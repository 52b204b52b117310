package generator

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("generator: worker pool closed")
	// ErrPoolFull is returned by TrySubmit when the queue has no free slot.
	ErrPoolFull = errors.New("generator: worker pool queue full")
)

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	Queued    int `json:"queued"`
	Active    int `json:"active"`
}

// Pool runs jobs on a fixed set of workers fed by a bounded queue. A full
// queue makes Submit block, which is how callers get backpressure.
type Pool struct {
	jobs    chan func()
	workers int
	active  atomic.Int32

	mu      sync.RWMutex
	closed  bool
	quit    chan struct{}
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

// NewPool starts workers goroutines. Non-positive workers defaults to
// runtime.NumCPU() and non-positive queueSize to four slots per worker.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}

	p := &Pool{
		jobs:    make(chan func(), queueSize),
		workers: workers,
		quit:    make(chan struct{}),
	}
	for range workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.active.Add(1)
		job()
		p.active.Add(-1)
	}
}

// Submit queues job, blocking while the queue is full. It returns ctx.Err()
// if ctx ends first and ErrPoolClosed once Close has been called, including
// for callers already waiting on a slot.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.senders.Add(1)
	p.mu.RUnlock()
	defer p.senders.Done()

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// TrySubmit queues job only if a slot is free right now.
func (p *Pool) TrySubmit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrPoolFull
	}
}

// Close stops accepting jobs, runs the ones already queued and waits for the
// workers to exit. Calls after the first return ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	// jobs is only closed once no Submit can still send on it.
	p.senders.Wait()
	close(p.jobs)
	p.wg.Wait()
	return nil
}

// Stats returns the current pool occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		QueueSize: cap(p.jobs),
		Queued:    len(p.jobs),
		Active:    int(p.active.Load()),
	}
}
