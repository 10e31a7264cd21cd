package forwarder

import (
	"io"
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
	return fds[0], fds[1]
}

func readAll(t *testing.T, fd int, n int, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	buf := make([]byte, n)
	got := 0
	for got < n && time.Now().Before(deadline) {
		m, err := unix.Read(fd, buf[got:])
		if err != nil {
			if err == unix.EAGAIN {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			t.Fatalf("read: %v", err)
		}
		if m == 0 {
			break
		}
		got += m
	}
	return buf[:got]
}

func TestForwardSeedsConnectResponse(t *testing.T) {
	clientFD, clientPeer := socketpair(t)
	serverFD, serverPeer := socketpair(t)
	unix.SetNonblock(clientFD, true)
	unix.SetNonblock(serverFD, true)
	unix.SetNonblock(clientPeer, true)
	unix.SetNonblock(serverPeer, true)
	defer unix.Close(clientPeer)
	defer unix.Close(serverPeer)

	f, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	f.Forward(clientFD, serverFD)

	got := readAll(t, clientPeer, len(connectResponse), 2*time.Second)
	if string(got) != connectResponse {
		t.Fatalf("response = %q, want %q", got, connectResponse)
	}
}

func TestForwardRelaysDataBothWays(t *testing.T) {
	clientFD, clientPeer := socketpair(t)
	serverFD, serverPeer := socketpair(t)
	unix.SetNonblock(clientFD, true)
	unix.SetNonblock(serverFD, true)
	unix.SetNonblock(clientPeer, true)
	unix.SetNonblock(serverPeer, true)
	defer unix.Close(clientPeer)
	defer unix.Close(serverPeer)

	f, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	f.Forward(clientFD, serverFD)

	// Drain the seeded CONNECT response before exchanging payload.
	readAll(t, clientPeer, len(connectResponse), 2*time.Second)

	payload := []byte("GET / HTTP/1.1\r\n\r\n")
	if _, err := unix.Write(clientPeer, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readAll(t, serverPeer, len(payload), 2*time.Second)
	if string(got) != string(payload) {
		t.Fatalf("server saw %q, want %q", got, payload)
	}

	reply := []byte("HTTP/1.1 204 No Content\r\n\r\n")
	if _, err := unix.Write(serverPeer, reply); err != nil {
		t.Fatalf("write: %v", err)
	}
	got = readAll(t, clientPeer, len(reply), 2*time.Second)
	if string(got) != string(reply) {
		t.Fatalf("client saw %q, want %q", got, reply)
	}
}

func TestForwardPropagatesClientEOFToServer(t *testing.T) {
	clientFD, clientPeer := socketpair(t)
	serverFD, serverPeer := socketpair(t)
	unix.SetNonblock(clientFD, true)
	unix.SetNonblock(serverFD, true)
	unix.SetNonblock(clientPeer, true)
	unix.SetNonblock(serverPeer, true)
	defer unix.Close(serverPeer)

	f, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	f.Forward(clientFD, serverFD)
	readAll(t, clientPeer, len(connectResponse), 2*time.Second)

	unix.Close(clientPeer) // client hangs up

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		buf := make([]byte, 16)
		n, err := unix.Read(serverPeer, buf)
		if n == 0 && err == nil {
			return // EOF observed on the server side too
		}
		if err != nil && err != unix.EAGAIN {
			if err == io.EOF {
				return
			}
			t.Fatalf("read: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server peer never saw EOF after client hung up")
}
