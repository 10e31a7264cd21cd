package api

// Handler is the unit of work a Reactor drives: a socket-backed
// participant in the readiness loop. Implementations are the CONNECT
// parser, the connector, and each half of a forwarder pair.
type Handler interface {
	// FD is the descriptor this handler is registered under.
	FD() int

	// OnEvent delivers a readiness notification. mask includes
	// EventError when the poller reported an error or hang-up on the
	// descriptor; the reactor takes no action of its own on it, and the
	// handler decides how to tear down.
	OnEvent(mask FDEventType)

	// OnTimeout fires when no event has been observed within the
	// owning reactor's idle duration since the last refresh.
	OnTimeout()
}

// Finalizer is implemented by handlers that need to release resources
// once the reactor has removed them and their reference count has
// dropped to zero (e.g. closing a socket once no sibling still
// references it).
type Finalizer interface {
	Finalize()
}
