// Package reactor implements a single-threaded, epoll-driven readiness
// loop: one poller, one wake pipe for cross-goroutine submissions, and
// an intrusive idle-deadline list. The parser, connector, and forwarder
// each run on their own Reactor instance, so a fully wired proxy uses
// exactly three reactor goroutines.
package reactor
