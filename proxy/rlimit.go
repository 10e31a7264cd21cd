package proxy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// raiseNoFileLimit sets RLIMIT_NOFILE's soft limit to n, the process
// ceiling on concurrently open tunnels (each costs 6 fds: 2 sockets + 2
// forwarder pipes). Fails if n exceeds the hard limit.
func raiseNoFileLimit(n uint64) error {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return fmt.Errorf("getrlimit NOFILE: %w", err)
	}
	lim.Cur = n
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return fmt.Errorf("setrlimit NOFILE to %d: %w", n, err)
	}
	return nil
}
