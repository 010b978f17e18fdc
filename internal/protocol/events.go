package protocol

// EventType discriminates connection lifecycle notifications.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventDisconnected    EventType = "disconnected"
	EventReconnected     EventType = "reconnected"
	EventReconnectFailed EventType = "reconnect_failed"
	EventProtocolError   EventType = "protocol_error"
)

// Event is one connection-level notification. Connection errors are
// surfaced as events, not returned errors, so the owning adapter
// decides whether to treat them as fatal.
type Event struct {
	Type    EventType
	Err     error
	Attempt int
}
