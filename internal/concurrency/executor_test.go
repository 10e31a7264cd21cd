package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorRunsAllSubmittedTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	const n = 200
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		if err := e.Submit(func() {
			count.Add(1)
			wg.Done()
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all tasks ran")
	}
	if got := count.Load(); got != n {
		t.Fatalf("ran %d tasks, want %d", got, n)
	}
}

func TestExecutorRejectsAfterClose(t *testing.T) {
	e := NewExecutor(1)
	e.Close()
	if err := e.Submit(func() {}); err != ErrExecutorClosed {
		t.Fatalf("Submit after Close = %v, want ErrExecutorClosed", err)
	}
}

func TestRingBufferEnqueueDequeue(t *testing.T) {
	r := NewRingBuffer[int](4)
	for i := 0; i < 4; i++ {
		if !r.Enqueue(i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if r.Enqueue(99) {
		t.Fatal("enqueue into full ring should fail")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue = %d,%v want %d,true", v, ok, i)
		}
	}
	if _, ok := r.Dequeue(); ok {
		t.Fatal("dequeue from empty ring should fail")
	}
}
