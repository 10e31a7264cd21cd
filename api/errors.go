package api

import "errors"

// Sentinel errors naming the error classes (spec §7): expected
// network/protocol errors close the chain quietly, expected capacity
// errors retry or abort just the current chain, and anything else is
// unexpected and fatal to the process. No package in this module
// returns or wraps these values: each stage reports failure with its
// own fmt.Errorf-wrapped error.
var (
	// ErrRejected marks an expected network/protocol failure: malformed
	// or oversized CONNECT request, disallowed port, DNS failure,
	// connect failure, peer reset, or idle timeout.
	ErrRejected = errors.New("connectproxy: rejected")

	// ErrCapacity marks an expected capacity failure (EMFILE, ENFILE,
	// ENOBUFS, ENOMEM) encountered while allocating a socket or pipe.
	ErrCapacity = errors.New("connectproxy: capacity exhausted")

	// ErrClosed names use of an already-closed resource.
	ErrClosed = errors.New("connectproxy: use of closed resource")

	// ErrWrongThread names a reactor-thread-only method invoked off the
	// reactor's own goroutine.
	ErrWrongThread = errors.New("connectproxy: call requires reactor thread")
)
