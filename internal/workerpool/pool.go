// Package workerpool provides a small bounded worker pool used by the
// scheduler to fan out per-device work without stampeding the
// telemetry store, generalized from the pack's shared worker-pool
// idiom (fixed worker goroutines draining a buffered task channel).
package workerpool

import (
	"context"
	"sync"
)

// Pool runs submitted functions on a fixed number of worker goroutines.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New starts a Pool with the given number of workers and queue depth.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan func(), queueSize),
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return p
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			fn()
		}
	}
}

// Submit enqueues fn for execution, blocking if the queue is full.
func (p *Pool) Submit(fn func()) {
	p.tasks <- fn
}

// TrySubmit enqueues fn without blocking, returning false if the
// queue is full.
func (p *Pool) TrySubmit(fn func()) bool {
	select {
	case p.tasks <- fn:
		return true
	default:
		return false
	}
}

// RunAll submits fns and blocks until all have completed.
func (p *Pool) RunAll(fns []func()) {
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, fn := range fns {
		f := fn
		p.Submit(func() {
			defer wg.Done()
			f()
		})
	}
	wg.Wait()
}

// Stop cancels pending workers and waits for in-flight tasks to
// finish. Queued-but-not-started tasks are abandoned.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
