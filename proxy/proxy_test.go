package proxy

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"
)

// TestProxyTunnelsConnectRequest drives a full accept -> parse -> resolve
// -> connect -> forward cycle against a loopback backend.
func TestProxyTunnelsConnectRequest(t *testing.T) {
	backend, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	defer backend.Close()
	backendPort := backend.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := backend.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	// tcp.Listen doesn't report back an OS-assigned port, so probe one
	// free ephemeral port up front and bind the proxy there directly.
	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	proxyPort := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	opt := DefaultOptions()
	opt.ListenAddr = fmt.Sprintf("127.0.0.1:%d", proxyPort)
	p, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	go p.Run()
	time.Sleep(50 * time.Millisecond)

	client, err := net.Dial("tcp4", opt.ListenAddr)
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer client.Close()

	fmt.Fprintf(client, "CONNECT 127.0.0.1:%d HTTP/1.1\r\n\r\n", backendPort)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(client)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if status != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("status = %q, want CONNECT success", status)
	}
	blank, err := reader.ReadString('\n')
	if err != nil || blank != "\r\n" {
		t.Fatalf("expected blank line after status, got %q, err %v", blank, err)
	}

	payload := []byte("ping")
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	echo := make([]byte, len(payload))
	if _, err := reader.Read(echo); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(echo) != string(payload) {
		t.Fatalf("echo = %q, want %q", echo, payload)
	}
}
