package forwarder

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fenwick-systems/connectproxy/api"
	"github.com/fenwick-systems/connectproxy/reactor"
)

const connectResponse = "HTTP/1.1 200 OK\r\n\r\n"

// Options sizes the per-direction splice buffers and bounds idle time.
type Options struct {
	ClientToServerBufferSizeBytes int
	ServerToClientBufferSizeBytes int
	// ReadWriteTimeout closes the tunnel if neither side has made
	// progress within this long.
	ReadWriteTimeout time.Duration
}

// DefaultOptions matches the original's default pipe sizes and idle timeout.
func DefaultOptions() Options {
	return Options{
		ClientToServerBufferSizeBytes: 4096,
		ServerToClientBufferSizeBytes: 8192,
		ReadWriteTimeout:              5 * time.Minute,
	}
}

// Forwarder owns a reactor dedicated to bidirectional splicing between
// client and server fds.
type Forwarder struct {
	opt     Options
	reactor *reactor.Reactor
}

// New starts the forwarder's reactor goroutine.
func New(opt Options) (*Forwarder, error) {
	r, err := reactor.New(opt.ReadWriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("forwarder: %w", err)
	}
	f := &Forwarder{opt: opt, reactor: r}
	go r.Run()
	return f, nil
}

// Close stops the reactor and releases its resources.
func (f *Forwarder) Close() error {
	f.reactor.Stop()
	return f.reactor.Close()
}

// Forward starts bidirectional splicing between clientFD and serverFD,
// seeding the CONNECT success response on the client side first.
func (f *Forwarder) Forward(clientFD, serverFD int) {
	opt := f.opt
	f.reactor.ScheduleOrRun(func() {
		newLink(f.reactor, clientFD, serverFD, opt)
	})
}

// link is one side of a tunnel: a socket fd, the splice pipe fed by the
// other side's reads, and the half-shutdown state of this fd.
type link struct {
	fd       int
	name     string
	out      *splicePipe
	readable bool
	writable bool
	other    *link
	reg      api.Registration
}

func newLink(r *reactor.Reactor, clientFD, serverFD int, opt Options) {
	client := &link{fd: clientFD, name: "client", readable: true, writable: true}
	server := &link{fd: serverFD, name: "server", readable: true, writable: true}

	var err error
	if client.out, err = newSplicePipe(opt.ServerToClientBufferSizeBytes); err != nil {
		log.Printf("forwarder: %v", err)
		unix.Close(clientFD)
		unix.Close(serverFD)
		return
	}
	if server.out, err = newSplicePipe(opt.ClientToServerBufferSizeBytes); err != nil {
		log.Printf("forwarder: %v", err)
		client.out.close()
		unix.Close(clientFD)
		unix.Close(serverFD)
		return
	}
	client.other = server
	server.other = client

	log.Printf("forwarder: forwarding [%d] (client) <=> [%d] (server)", clientFD, serverFD)

	client.reg = r.AddEdgeTriggered(clientFD, client, api.EventRead|api.EventWrite)
	server.reg = r.AddEdgeTriggered(serverFD, server, api.EventRead|api.EventWrite)

	if err := client.out.write([]byte(connectResponse)); err != nil {
		log.Printf("forwarder: seeding CONNECT response: %v", err)
	}
}

func (l *link) FD() int { return l.fd }

func (l *link) OnEvent(mask api.FDEventType) {
	if mask.Has(api.EventError) {
		log.Printf("forwarder: [%d] (%s) connection broke", l.fd, l.name)
		l.terminate()
		return
	}
	// Both branches run regardless of the other's outcome: a half
	// duplex link can still have pending work on the opposite
	// direction even after this direction hits EOF or an error.
	moved := false
	if mask.Has(api.EventWrite) && l.forwardFromOther() {
		moved = true
	}
	if mask.Has(api.EventRead) && l.other.forwardFromOther() {
		moved = true
	}
	if moved {
		l.refresh()
		l.other.refresh()
	}
}

func (l *link) OnTimeout() {
	log.Printf("forwarder: [%d] (%s) timed out waiting for IO", l.fd, l.name)
	l.terminate()
}

// forwardFromOther drains as much data as possible between l.other's fd
// and l's fd via l's out pipe. Returns true if any data moved or an EOF
// was handled (which may have closed l), and false if nothing moved or a
// read/write error terminated the tunnel.
func (l *link) forwardFromOther() bool {
	moved := false
	for {
		io := false
		if l.other.readable {
			switch l.out.writeFrom(l.other.fd) {
			case ioData:
				io = true
			case ioEOF:
				log.Printf("forwarder: [%d] (%s) read EOF", l.other.fd, l.other.name)
				io = true
				l.other.closeForReading()
			case ioErr:
				log.Printf("forwarder: [%d] (%s) read error", l.other.fd, l.other.name)
				l.terminate()
				return false
			case ioNoOp:
			}
		}
		if l.writable {
			switch l.out.readTo(l.fd) {
			case ioData:
				io = true
			case ioEOF:
				log.Printf("forwarder: [%d] (%s) write EOF", l.fd, l.name)
				io = true
				l.closeForWriting()
			case ioErr:
				log.Printf("forwarder: [%d] (%s) write error", l.fd, l.name)
				l.terminate()
				return false
			case ioNoOp:
			}
		}
		if io {
			moved = true
		} else {
			return moved
		}
	}
}

func (l *link) closeForReading() {
	if !l.readable {
		return
	}
	if l.writable {
		log.Printf("forwarder: [%d] (%s) shutdown(SHUT_RD)", l.fd, l.name)
		l.readable = false
		if l.reg != nil {
			l.reg.Modify(api.EventWrite)
		}
		if err := unix.Shutdown(l.fd, unix.SHUT_RD); err != nil && err != unix.ENOTCONN {
			log.Printf("forwarder: [%d] shutdown(SHUT_RD): %v", l.fd, err)
		}
	} else {
		l.close()
	}
}

func (l *link) closeForWriting() {
	if !l.writable {
		return
	}
	if l.readable {
		log.Printf("forwarder: [%d] (%s) shutdown(SHUT_WR)", l.fd, l.name)
		l.writable = false
		if l.reg != nil {
			l.reg.Modify(api.EventRead)
		}
		if err := unix.Shutdown(l.fd, unix.SHUT_WR); err != nil && err != unix.ENOTCONN {
			log.Printf("forwarder: [%d] shutdown(SHUT_WR): %v", l.fd, err)
		}
	} else {
		l.close()
	}
}

// close tears this link's fd and pipe down if still open. Safe to call
// more than once.
func (l *link) close() {
	if !l.readable && !l.writable {
		return
	}
	log.Printf("forwarder: [%d] (%s) close", l.fd, l.name)
	l.readable = false
	l.writable = false
	if l.reg != nil {
		l.reg.Remove()
		l.reg = nil
	}
	unix.Close(l.fd)
	l.out.close()
}

// terminate closes both sides of the tunnel, discarding buffered data.
func (l *link) terminate() {
	l.close()
	l.other.close()
}

func (l *link) refresh() {
	if (l.readable || l.writable) && l.reg != nil {
		l.reg.Refresh()
	}
}
