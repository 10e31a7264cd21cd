// Package connector establishes the outbound, non-blocking TCP connection
// to a CONNECT request's resolved target on its own reactor. A socket is
// created with SOCK_NONBLOCK, TCP_NODELAY is set, and connect(2) is
// issued; the reactor then watches for writability (or error/timeout) to
// learn the outcome via SO_ERROR.
package connector
