package forwarder

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type ioStatus int

const (
	ioData ioStatus = iota
	ioEOF
	ioErr
	ioNoOp
)

// splicePipe is a kernel pipe, sized via F_SETPIPE_SZ, used as a
// zero-copy staging buffer between two sockets: writeFrom splices data
// in from a source fd, readTo splices it back out to a destination fd.
type splicePipe struct {
	r, w     int
	capacity int
	size     int
}

func newSplicePipe(sizeBytes int) (*splicePipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("forwarder: pipe2: %w", err)
	}
	capacity, err := unix.FcntlInt(uintptr(fds[0]), unix.F_SETPIPE_SZ, sizeBytes)
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, fmt.Errorf("forwarder: F_SETPIPE_SZ: %w", err)
	}
	return &splicePipe{r: fds[0], w: fds[1], capacity: capacity}, nil
}

// write injects literal bytes into the pipe ahead of any spliced data.
// Used once, to seed the CONNECT success response on the client side.
func (p *splicePipe) write(data []byte) error {
	n, err := unix.Write(p.w, data)
	if err != nil {
		return fmt.Errorf("forwarder: write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("forwarder: short write seeding response: %d of %d bytes", n, len(data))
	}
	p.size += n
	return nil
}

// writeFrom splices as much as currently fits from fd into the pipe.
func (p *splicePipe) writeFrom(fd int) ioStatus {
	if p.w < 0 || p.size == p.capacity {
		return ioNoOp
	}
	n, err := unix.Splice(fd, nil, p.w, nil, p.capacity-p.size, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
	if err != nil {
		if err == unix.EAGAIN {
			return ioNoOp
		}
		unix.Close(p.w)
		p.w = -1
		return ioErr
	}
	if n == 0 {
		unix.Close(p.w)
		p.w = -1
		return ioEOF
	}
	p.size += int(n)
	return ioData
}

// readTo splices as much as is currently buffered out to fd.
//
// splice() has a long-standing kernel quirk where an error return — be
// it EAGAIN or otherwise — can leave the pipe drained anyway. A zero-byte
// write first checks whether fd is writable at all, which avoids most
// spurious EAGAINs from splice() itself; FIONREAD then distinguishes a
// real EAGAIN (nothing lost) from the pipe having been silently cleared.
func (p *splicePipe) readTo(fd int) ioStatus {
	if p.r < 0 {
		return ioNoOp
	}
	if p.size == 0 {
		if p.w >= 0 {
			return ioNoOp
		}
		unix.Close(p.r)
		p.r = -1
		return ioEOF
	}
	if _, err := unix.Write(fd, nil); err != nil && (err == unix.EAGAIN || err == unix.EWOULDBLOCK) {
		return ioNoOp
	}
	n, err := unix.Splice(p.r, nil, fd, nil, p.size, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
	if err != nil {
		if err == unix.EAGAIN {
			if remaining, ferr := unix.IoctlGetInt(p.r, unix.FIONREAD); ferr == nil && remaining == p.size {
				return ioNoOp
			}
		}
		unix.Close(p.r)
		p.r = -1
		return ioErr
	}
	p.size -= int(n)
	return ioData
}

func (p *splicePipe) close() {
	if p.r >= 0 {
		unix.Close(p.r)
		p.r = -1
	}
	if p.w >= 0 {
		unix.Close(p.w)
		p.w = -1
	}
}
