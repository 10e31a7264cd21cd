package connector

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestConnectSucceeds(t *testing.T) {
	ln, port := listenLoopback(t)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	c, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	var gotFD int
	var gotErr error
	c.Connect(net.ParseIP("127.0.0.1"), port, func(fd int, err error) {
		gotFD, gotErr = fd, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if gotFD < 0 {
		t.Fatalf("fd = %d, want >= 0", gotFD)
	}
	unix.Close(gotFD)
}

func TestConnectFailsWhenRefused(t *testing.T) {
	ln, port := listenLoopback(t)
	ln.Close() // free the port so nothing listens on it

	opt := DefaultOptions()
	opt.ConnectTimeout = 500 * time.Millisecond
	c, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	var gotErr error
	c.Connect(net.ParseIP("127.0.0.1"), port, func(fd int, err error) {
		gotErr = err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect failure")
	}
	if gotErr == nil {
		t.Fatal("expected a connection error")
	}
}
