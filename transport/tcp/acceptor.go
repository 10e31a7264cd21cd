package tcp

import (
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// AcceptorConfig describes the listening socket for incoming client
// connections. ListenAddr must be a plain IPv4 host:port (e.g. "0.0.0.0:8889").
type AcceptorConfig struct {
	ListenAddr string
	Backlog    int
}

// Acceptor owns the raw listening fd. It hands off accepted client fds
// directly to the caller instead of wrapping them in net.Conn, since the
// parser reactor registers fds with epoll itself.
type Acceptor struct {
	fd   int
	addr string
}

// Listen resolves cfg.ListenAddr, binds and listens on an AF_INET socket.
func Listen(cfg AcceptorConfig) (*Acceptor, error) {
	host, portStr, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("tcp: invalid listen addr %q: %w", cfg.ListenAddr, err)
	}
	ip, err := resolveIPv4(host)
	if err != nil {
		return nil, fmt.Errorf("tcp: resolve %q: %w", host, err)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("tcp: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tcp: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tcp: bind: %w", err)
	}

	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = 1024
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tcp: listen: %w", err)
	}

	log.Printf("tcp: listening on %s", cfg.ListenAddr)
	return &Acceptor{fd: fd, addr: cfg.ListenAddr}, nil
}

// Accept blocks until a client connects, returning a non-blocking,
// TCP_NODELAY client fd. Expected-capacity errors (EMFILE, ENFILE,
// ENOBUFS, ENOMEM) are logged and retried rather than propagated, since
// the listening socket itself remains healthy; any other error is
// unexpected and returned to the caller to abort on.
func (a *Acceptor) Accept() (int, error) {
	for {
		conn, _, err := unix.Accept4(a.fd, unix.SOCK_NONBLOCK)
		if err == nil {
			if err := unix.SetsockoptInt(conn, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
				unix.Close(conn)
				return 0, fmt.Errorf("tcp: setsockopt TCP_NODELAY: %w", err)
			}
			return conn, nil
		}
		if err == unix.EINTR {
			continue
		}
		if isCapacityErrno(err) {
			log.Printf("tcp: accept4 failed (capacity): %v, retrying", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		return 0, fmt.Errorf("tcp: accept4: %w", err)
	}
}

// Close closes the listening socket.
func (a *Acceptor) Close() error {
	return unix.Close(a.fd)
}

func isCapacityErrno(err error) bool {
	switch err {
	case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM:
		return true
	default:
		return false
	}
}

func resolveIPv4(host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero.To4(), nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, err
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				return v4, nil
			}
		}
		return nil, fmt.Errorf("no IPv4 address for %q", host)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", host)
	}
	return v4, nil
}

func parsePort(s string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(s, "%d", &port); err != nil {
		return 0, fmt.Errorf("tcp: invalid port %q: %w", s, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("tcp: port %d out of range", port)
	}
	return port, nil
}
