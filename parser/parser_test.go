package parser

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestParseRequestExtractsHostPort(t *testing.T) {
	p, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	client, server := socketpair(t)

	done := make(chan struct{})
	var gotHostPort string
	var gotErr error
	p.ParseRequest(server, func(hostPort string, err error) {
		gotHostPort, gotErr = hostPort, err
		close(done)
	})

	unix.Write(client, []byte("CONNECT example.com:443 HTTP/1.1\r\n\r\n"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if gotHostPort != "example.com:443" {
		t.Fatalf("host:port = %q, want %q", gotHostPort, "example.com:443")
	}
}

func TestParseRequestRejectsBadPrefix(t *testing.T) {
	p, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	client, server := socketpair(t)

	done := make(chan struct{})
	var gotErr error
	p.ParseRequest(server, func(hostPort string, err error) {
		gotErr = err
		close(done)
	})

	unix.Write(client, []byte("GET / HTTP/1.1\r\n\r\n"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	if gotErr == nil {
		t.Fatal("expected an error for a non-CONNECT request")
	}
}

func TestParseRequestTimesOut(t *testing.T) {
	opt := DefaultOptions()
	opt.AcceptTimeout = 50 * time.Millisecond
	p, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	_, server := socketpair(t)

	done := make(chan struct{})
	var gotErr error
	p.ParseRequest(server, func(hostPort string, err error) {
		gotErr = err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	if gotErr == nil {
		t.Fatal("expected a timeout error")
	}
}
