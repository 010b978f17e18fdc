// Package protocol implements the line-delimited request/response
// protocol spoken between conductor and the deployment worker over a
// unix-domain socket.
//
// Each frame is one line of UTF-8 JSON terminated by a single newline;
// the payload never contains an unescaped newline, so message boundaries
// are newline characters and no length prefix is needed. Requests carry
// a caller-generated id that is the sole correlation key; responses may
// arrive in any order.
//
// The package provides both sides of the wire: Client maintains one
// persistent connection with per-request timeouts and automatic
// reconnection, and Server is the worker-side listener with a method
// dispatch table.
package protocol
