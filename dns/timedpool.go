package dns

import (
	"container/heap"
	"sync"
	"time"

	"github.com/fenwick-systems/connectproxy/internal/concurrency"
)

type timedTask struct {
	at  time.Time
	idx int64
	fn  func()
}

type taskHeap []*timedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].idx < h[j].idx
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*timedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// TimedPool runs functions at or after a scheduled time. A single
// scheduler goroutine tracks the next deadline in a min-heap and, once a
// task is due, hands it to a fixed-size concurrency.Executor for
// execution — the Go analogue of N worker threads that each either sleep
// until the next deadline or run the task that came due.
type TimedPool struct {
	mu      sync.Mutex
	heap    taskHeap
	nextIdx int64
	wake    chan struct{}
	closed  bool
	done    chan struct{}
	exec    *concurrency.Executor
}

// NewTimedPool starts a pool backed by numWorkers execution goroutines.
func NewTimedPool(numWorkers int) *TimedPool {
	p := &TimedPool{
		exec: concurrency.NewExecutor(numWorkers),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Schedule runs fn at or after at. Safe to call from any goroutine.
func (p *TimedPool) Schedule(at time.Time, fn func()) {
	p.mu.Lock()
	heap.Push(&p.heap, &timedTask{at: at, idx: p.nextIdx, fn: fn})
	p.nextIdx++
	p.mu.Unlock()
	p.notify()
}

func (p *TimedPool) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *TimedPool) loop() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.heap = nil
			p.mu.Unlock()
			close(p.done)
			return
		}
		if p.heap.Len() == 0 {
			p.mu.Unlock()
			<-p.wake
			continue
		}
		next := p.heap[0]
		wait := time.Until(next.at)
		if wait <= 0 {
			heap.Pop(&p.heap)
			p.mu.Unlock()
			fn := next.fn
			p.exec.Submit(fn)
			continue
		}
		p.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// Close stops the scheduler goroutine and the backing executor, waiting
// for in-flight work to finish. Queued-but-not-yet-due tasks are dropped.
func (p *TimedPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.notify()
	<-p.done
	p.exec.Close()
}
