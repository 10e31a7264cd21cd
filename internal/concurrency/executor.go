package concurrency

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrExecutorClosed is returned by Submit once Close has been called.
var ErrExecutorClosed = errors.New("concurrency: executor closed")

// TaskFunc is one unit of work handed to an Executor.
type TaskFunc func()

// Executor is a fixed-size worker pool draining a single FIFO task
// queue, backing the DNS resolver's worker threads
// (num_dns_resolution_threads).
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue
	closed  bool
	wg      sync.WaitGroup
	workers int
}

// NewExecutor starts numWorkers goroutines draining a shared queue.
func NewExecutor(numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	e := &Executor{tasks: queue.New(), workers: numWorkers}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.workerLoop()
	}
	return e
}

// NumWorkers reports the configured worker count.
func (e *Executor) NumWorkers() int { return e.workers }

// Submit enqueues task for the next free worker.
func (e *Executor) Submit(task TaskFunc) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.tasks.Add(task)
	e.mu.Unlock()
	e.cond.Signal()
	return nil
}

func (e *Executor) workerLoop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.tasks.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.tasks.Length() == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		task := e.tasks.Remove().(TaskFunc)
		e.mu.Unlock()
		task()
	}
}

// Close signals every worker to exit once the queue drains and waits
// for them to stop. Queued-but-not-yet-started work still runs; unlike
// the timed thread pool, the executor drains on close.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}
