package api

import "time"

// Registration is the reactor-owned lifecycle handle for one registered
// Handler: its readiness mask, its membership in the idle-deadline
// sequence, and its reference count. A Handler obtains one from
// Reactor.Add and uses it to refresh deadlines, change interest, drop
// out of the reactor, or hold/release references. The reactor itself
// holds an extra reference across each dispatch; the forwarder's links
// point at each other directly and take no references.
//
// IncRef/DecRef/Refresh/Modify/Remove are only safe to call from the
// owning reactor's own goroutine, matching the reactor's single-threaded
// contract (spec: "callable only from its own thread").
type Registration interface {
	// IncRef takes an extra reference, preventing finalization until a
	// matching DecRef.
	IncRef()
	// DecRef releases a reference; once the count reaches zero and the
	// registration has been Removed, the handler's Finalize (if it
	// implements Finalizer) runs.
	DecRef()
	// Refresh moves this registration to the tail of the deadline
	// sequence and sets its deadline to now + the reactor's idle
	// timeout.
	Refresh()
	// Modify changes the readiness mask this registration polls for.
	Modify(mask FDEventType)
	// Remove unregisters the descriptor from the poller, detaches from
	// the deadline sequence, and releases the reactor's own reference.
	Remove()
	// Registered reports whether this registration is still attached
	// to its reactor (false once Remove has run).
	Registered() bool
}

// Reactor is a single-threaded readiness loop: one poller plus a wake
// pipe, one intrusive idle-deadline list, and callback dispatch to
// registered Handlers. Exactly one goroutine calls Run for the lifetime
// of a Reactor.
type Reactor interface {
	// Add registers h under fd with the given initial interest mask,
	// level-triggered, sets its deadline to now + the reactor's idle
	// timeout, and returns the Registration handle. Must be called
	// from the reactor's own goroutine.
	Add(fd int, h Handler, mask FDEventType) Registration

	// AddEdgeTriggered is Add with edge-triggered readiness: the
	// forwarder uses this so a registration fires only when a
	// descriptor newly becomes ready, requiring the handler to drain
	// to EAGAIN/EWOULDBLOCK on each dispatch.
	AddEdgeTriggered(fd int, h Handler, mask FDEventType) Registration

	// Schedule boxes fn and hands it to the reactor from any
	// goroutine; it is a contract violation to call this from the
	// reactor's own goroutine (use ScheduleOrRun instead).
	Schedule(fn func())

	// ScheduleOrRun runs fn inline when called from the reactor's own
	// goroutine, otherwise forwards to Schedule.
	ScheduleOrRun(fn func())

	// Run blocks, servicing readiness and timeout events until Stop is
	// called.
	Run()

	// Stop requests the loop exit after its current iteration. Safe to
	// call from any goroutine.
	Stop()

	// Close releases the poller and wake pipe descriptors. Call only
	// after Run has returned.
	Close() error

	// IdleTimeout is this reactor's configured idle duration.
	IdleTimeout() time.Duration
}
