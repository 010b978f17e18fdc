package protocol

import (
	"fmt"
	"time"
)

// ConnectionError reports a failure to connect to or write to the
// worker socket.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports an unparseable or malformed frame. It does not
// abort the connection or other in-flight requests.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RequestTimeoutError rejects a single pending request whose response
// did not arrive in time. It is local to that request.
type RequestTimeoutError struct {
	ID      string
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.ID, e.Timeout)
}

// ConnectionLostError rejects every request still pending when the
// connection drops.
type ConnectionLostError struct {
	ID string
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection lost before response to request %s", e.ID)
}

// ReconnectExhaustedError is the terminal notification raised after the
// configured maximum of consecutive failed reconnection attempts.
type ReconnectExhaustedError struct {
	Attempts int
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("reconnect failed after %d attempts", e.Attempts)
}
