// Package parser reads and validates an HTTP CONNECT request off a raw
// socket fd on its own reactor. A request must match
// "CONNECT ([^ \r]*).*\r\n\r\n" within Options.MaxRequestSizeBytes and
// Options.AcceptTimeout; the captured host:port is handed to the
// caller's callback, which runs on the parser's own reactor goroutine.
package parser
