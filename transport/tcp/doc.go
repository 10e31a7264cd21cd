// Package tcp implements the raw listening socket for incoming client
// connections: bind, listen, and a retrying accept4 loop that hands each
// accepted fd to the parser reactor. There is no protocol framing here —
// a CONNECT proxy speaks HTTP, not WebSocket, and that parsing happens in
// package parser once the fd is registered.
package tcp
