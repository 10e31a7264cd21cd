package connector

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fenwick-systems/connectproxy/api"
	"github.com/fenwick-systems/connectproxy/reactor"
)

// Options controls the connect timeout.
type Options struct {
	// ConnectTimeout closes and fails the connection attempt if the
	// target hasn't become writable (or errored) within this long.
	ConnectTimeout time.Duration
}

// DefaultOptions returns the original's default 10 second connect timeout.
func DefaultOptions() Options {
	return Options{ConnectTimeout: 10 * time.Second}
}

// Callback receives the connected fd, or a negative fd and a non-nil
// error on failure. Called exactly once, on the Connector's reactor
// goroutine, except when setting up the socket fails (socket(),
// setsockopt, a non-IPv4 address, or an immediate connect(2) error):
// then it is called synchronously from Connect.
type Callback func(fd int, err error)

// Connector owns a reactor dedicated to watching in-progress connect(2)
// calls for writability.
type Connector struct {
	opt     Options
	reactor *reactor.Reactor
}

// New starts the connector's reactor goroutine.
func New(opt Options) (*Connector, error) {
	r, err := reactor.New(opt.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}
	c := &Connector{opt: opt, reactor: r}
	go r.Run()
	return c, nil
}

// Close stops the reactor and releases its resources.
func (c *Connector) Close() error {
	c.reactor.Stop()
	return c.reactor.Close()
}

// Connect issues a non-blocking connect to ip:port and invokes cb
// exactly once with the resulting fd, or an error.
func (c *Connector) Connect(ip net.IP, port int, cb Callback) {
	fd, err := connectAsync(ip, port)
	if err != nil {
		cb(-1, err)
		return
	}
	h := &connectHandler{fd: fd, cb: cb}
	c.reactor.ScheduleOrRun(func() {
		h.reg = c.reactor.Add(fd, h, api.EventWrite)
	})
}

// connectAsync is the expected-capacity-error class of failure (socket
// creation running out of fds/buffers): the caller is expected to fail
// this one CONNECT request and keep serving others.
func connectAsync(ip net.IP, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("connector: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("connector: setsockopt TCP_NODELAY: %w", err)
	}

	v4 := ip.To4()
	if v4 == nil {
		unix.Close(fd)
		return -1, fmt.Errorf("connector: %v is not an IPv4 address", ip)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], v4)

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, fmt.Errorf("connector: connect: %w", err)
	}
	return fd, nil
}

type connectHandler struct {
	fd  int
	cb  Callback
	reg api.Registration
}

func (h *connectHandler) FD() int { return h.fd }

func (h *connectHandler) OnEvent(mask api.FDEventType) {
	if mask.Has(api.EventError) || mask.Has(api.EventWrite) {
		h.finish(sockError(h.fd))
	}
}

func (h *connectHandler) OnTimeout() {
	h.finish(unix.ETIMEDOUT)
}

func (h *connectHandler) finish(errno error) {
	if h.reg != nil {
		h.reg.Remove()
		h.reg = nil
	}
	if errno == nil {
		h.cb(h.fd, nil)
		return
	}
	unix.Close(h.fd)
	h.cb(-1, fmt.Errorf("connector: unable to connect: %w", errno))
}

func sockError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}
