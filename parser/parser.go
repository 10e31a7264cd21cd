package parser

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fenwick-systems/connectproxy/api"
	"github.com/fenwick-systems/connectproxy/reactor"
)

// Options controls request-size and timeout limits.
type Options struct {
	// MaxRequestSizeBytes closes the connection if the CONNECT request
	// exceeds this many bytes.
	MaxRequestSizeBytes int
	// AcceptTimeout closes the connection if the full request hasn't
	// arrived within this long.
	AcceptTimeout time.Duration
}

// DefaultOptions matches the original parser's defaults.
func DefaultOptions() Options {
	return Options{
		MaxRequestSizeBytes: 1024,
		AcceptTimeout:       5 * time.Second,
	}
}

// Callback receives the CONNECT request's host:port, or a non-nil error
// if the request was malformed, too large, or timed out. Called exactly
// once, on the Parser's reactor goroutine.
type Callback func(hostPort string, err error)

// Parser owns a single reactor dedicated to reading CONNECT requests off
// newly accepted fds.
type Parser struct {
	opt     Options
	reactor *reactor.Reactor
}

// New starts the parser's reactor goroutine.
func New(opt Options) (*Parser, error) {
	r, err := reactor.New(opt.AcceptTimeout)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	p := &Parser{opt: opt, reactor: r}
	go r.Run()
	return p, nil
}

// Close stops the reactor and releases its resources.
func (p *Parser) Close() error {
	p.reactor.Stop()
	return p.reactor.Close()
}

// ParseRequest registers fd with the parser's reactor and invokes cb
// exactly once with the request's host:port, or an error. Does not
// block; fd must already be non-blocking.
func (p *Parser) ParseRequest(fd int, cb Callback) {
	h := &requestHandler{
		fd:  fd,
		cb:  cb,
		buf: make([]byte, p.opt.MaxRequestSizeBytes),
	}
	p.reactor.ScheduleOrRun(func() {
		h.reg = p.reactor.Add(fd, h, api.EventRead)
	})
}

var connectPrefix = []byte("CONNECT ")

type requestHandler struct {
	fd   int
	cb   Callback
	buf  []byte
	size int
	reg  api.Registration
}

func (h *requestHandler) FD() int { return h.fd }

func (h *requestHandler) OnEvent(mask api.FDEventType) {
	if mask.Has(api.EventError) {
		h.finish("", fmt.Errorf("parser: socket error on fd %d", h.fd))
		return
	}
	if !mask.Has(api.EventRead) {
		return
	}
	hostPort, err, done := h.read()
	if done {
		h.finish(hostPort, err)
	}
}

func (h *requestHandler) OnTimeout() {
	h.finish("", fmt.Errorf("parser: timed out waiting for request on fd %d", h.fd))
}

func (h *requestHandler) finish(hostPort string, err error) {
	if h.reg != nil {
		h.reg.Remove()
		h.reg = nil
	}
	h.cb(hostPort, err)
}

// read consumes whatever is currently available on fd. The bool return
// is true once a final verdict (success or failure) has been reached and
// no further reads should be attempted.
func (h *requestHandler) read() (string, error, bool) {
	for {
		if h.size == len(h.buf) {
			return "", errors.New("parser: request too big"), true
		}
		n, err := unix.Read(h.fd, h.buf[h.size:])
		if err != nil {
			if err == unix.EAGAIN {
				return "", nil, false
			}
			return "", fmt.Errorf("parser: read fd %d: %w", h.fd, err), true
		}

		if h.size < len(connectPrefix) {
			end := h.size + n
			if end > len(connectPrefix) {
				end = len(connectPrefix)
			}
			if !bytes.Equal(h.buf[h.size:end], connectPrefix[h.size:end]) {
				return "", errors.New("parser: invalid request prefix"), true
			}
		}
		h.size += n

		if bytes.HasSuffix(h.buf[:h.size], []byte("\r\n\r\n")) {
			return h.extractHostPort()
		}
		if n == 0 {
			return "", errors.New("parser: incomplete request"), true
		}
	}
}

func (h *requestHandler) extractHostPort() (string, error, bool) {
	req := h.buf[:h.size]
	rest := req[len(connectPrefix):]
	end := bytes.IndexAny(rest, " \r")
	var hostPort string
	if end < 0 {
		hostPort = string(rest)
	} else {
		hostPort = string(rest[:end])
	}
	if hostPort == "" {
		return "", errors.New("parser: empty host:port in request"), true
	}
	return hostPort, nil, true
}
