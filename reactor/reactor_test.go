//go:build linux
// +build linux

package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fenwick-systems/connectproxy/api"
)

type recordingHandler struct {
	fd        int
	events    int32
	timeouts  int32
	onEvent   func(mask api.FDEventType)
	onTimeout func()
}

func (h *recordingHandler) FD() int { return h.fd }
func (h *recordingHandler) OnEvent(mask api.FDEventType) {
	atomic.AddInt32(&h.events, 1)
	if h.onEvent != nil {
		h.onEvent(mask)
	}
}
func (h *recordingHandler) OnTimeout() {
	atomic.AddInt32(&h.timeouts, 1)
	if h.onTimeout != nil {
		h.onTimeout()
	}
}

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	return fds[0], fds[1]
}

func TestReactorDispatchesReadEvent(t *testing.T) {
	r, err := New(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, b := socketpair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	done := make(chan struct{})
	h := &recordingHandler{fd: b, onEvent: func(mask api.FDEventType) {
		if mask.Has(api.EventRead) {
			close(done)
		}
	}}
	r.Add(b, h, api.EventRead)

	go r.Run()
	defer r.Stop()

	if _, err := unix.Write(a, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read event dispatch")
	}
}

func TestReactorTimeoutFiresWithinBound(t *testing.T) {
	const idle = 30 * time.Millisecond
	r, err := New(idle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, b := socketpair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	fired := make(chan time.Time, 1)
	h := &recordingHandler{fd: b, onTimeout: func() {
		select {
		case fired <- time.Now():
		default:
		}
	}}
	start := time.Now()
	r.Add(b, h, api.EventRead)

	go r.Run()
	defer r.Stop()

	select {
	case got := <-fired:
		if got.Sub(start) < idle {
			t.Fatalf("timeout fired early: %v < %v", got.Sub(start), idle)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestScheduleRunsOnReactorGoroutine(t *testing.T) {
	r, err := New(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	r.Schedule(func() { wg.Done() })

	go r.Run()
	defer r.Stop()

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled closure never ran")
	}
}

func TestAddRemoveRoundTrips(t *testing.T) {
	r, err := New(time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, b := socketpair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	h := &recordingHandler{fd: b}
	reg := r.Add(b, h, api.EventRead)
	if !reg.Registered() {
		t.Fatal("expected registered after Add")
	}
	reg.Remove()
	if reg.Registered() {
		t.Fatal("expected unregistered after Remove")
	}
	if _, ok := r.regs[b]; ok {
		t.Fatal("fd map still holds removed registration")
	}
	if r.deadlines.head != nil || r.deadlines.tail != nil {
		t.Fatal("deadline list not empty after sole registration removed")
	}
}
