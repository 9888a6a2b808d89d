package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool is a pool of goroutines for tile rasterization.
//
// Each worker has its own queue and steals from the others when its queue is
// empty. The pool counts tasks from the moment they are accepted until they
// return, so owners can wait for outstanding raster work before tearing down
// the tiles it touches.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()

	done chan struct{}
	wg   sync.WaitGroup

	running atomic.Bool

	// pending counts accepted tasks that have not returned yet.
	pending atomic.Int64
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			p.run(work)

		default:
			if stolen := p.steal(id); stolen != nil {
				p.run(stolen)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				p.run(work)
			}
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	defer p.pending.Add(-1)
	work()
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.run(work)
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit sends a single task to the worker with the shortest queue.
// It may block while every queue is full. If the pool is closed, this is a
// no-op and the task is not counted.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil || !p.running.Load() {
		return
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	p.enqueue(minIdx, fn)
}

func (p *WorkerPool) enqueue(worker int, fn func()) bool {
	p.pending.Add(1)
	select {
	case p.workQueues[worker] <- fn:
		return true
	case <-p.done:
		p.pending.Add(-1)
		return false
	}
}

// PendingTasks returns the number of accepted tasks that have not finished.
func (p *WorkerPool) PendingTasks() int {
	return int(p.pending.Load())
}

// Close gracefully shuts down the pool.
// It stops accepting new work, runs everything already queued, and then stops
// all workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// PendingCounter reports outstanding work.
type PendingCounter interface {
	PendingTasks() int
}

// DefaultPollInterval is the WaitIdle polling period used when none is given.
const DefaultPollInterval = 20 * time.Millisecond

// WaitIdle blocks until c reports zero pending tasks, polling every interval.
func WaitIdle(c PendingCounter, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for c.PendingTasks() != 0 {
		time.Sleep(interval)
	}
}
