package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"conductor/internal/metrics"
	"conductor/pkg/logging"
)

// State is the connection state of a Client.
type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
	StateReconnecting State = "Reconnecting"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultReconnectDelay = 1 * time.Second
	defaultMaxReconnects  = 5
	defaultEventBuffer    = 32
)

// ClientOptions configures a protocol Client.
type ClientOptions struct {
	// SocketPath is the unix socket of the worker. Reconnection always
	// targets the same path.
	SocketPath string

	// RequestTimeout bounds each request individually. Zero means the
	// default of 30 seconds.
	RequestTimeout time.Duration

	// AutoReconnect enables scheduled reconnection after an unexpected
	// disconnect.
	AutoReconnect bool

	// ReconnectDelay is the fixed delay between reconnection attempts.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts caps consecutive failed reconnections before
	// the terminal reconnect_failed notification.
	MaxReconnectAttempts int

	// Dial overrides how the connection is opened. Tests use this to
	// substitute in-memory pipes. Defaults to dialing SocketPath.
	Dial func() (net.Conn, error)
}

type pendingRequest struct {
	ch    chan callOutcome
	timer *time.Timer
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

// Client maintains one persistent connection to the worker and turns
// Call invocations into framed requests with correlated responses.
//
// The pending-request map is owned exclusively by the Client: entries
// are removed on response, timeout, or disconnect, never left to
// linger.
type Client struct {
	opts ClientOptions

	mu       sync.Mutex
	state    State
	conn     net.Conn
	pending  map[string]*pendingRequest
	attempts int
	// gen invalidates read loops and scheduled reconnects that belong
	// to a previous connection.
	gen            int
	reconnectTimer *time.Timer

	wmu sync.Mutex // serializes writes to conn

	events chan Event
}

// NewClient creates a disconnected Client.
func NewClient(opts ClientOptions) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnects
	}
	if opts.Dial == nil {
		socketPath := opts.SocketPath
		opts.Dial = func() (net.Conn, error) {
			return net.Dial("unix", socketPath)
		}
	}
	return &Client{
		opts:    opts,
		state:   StateDisconnected,
		pending: make(map[string]*pendingRequest),
		events:  make(chan Event, defaultEventBuffer),
	}
}

// Events returns the channel of connection lifecycle notifications.
// Events are dropped rather than blocking the client when the consumer
// falls behind.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PendingCount reports the number of in-flight requests.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Connect opens the connection. It resolves on the first successful
// connect and is idempotent when already connected.
func (c *Client) Connect() error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.opts.Dial()
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	c.emit(Event{Type: EventConnected})
	logging.Debug("Protocol", "Connected to %s", c.opts.SocketPath)
	return nil
}

// Disconnect cancels any scheduled reconnection, rejects all pending
// requests, and closes the connection. It is idempotent, and Connect
// may be called again afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++ // orphan the read loop of this connection
	c.state = StateDisconnected
	c.attempts = 0
	pending := c.takePendingLocked()
	c.mu.Unlock()

	rejectAll(pending)
	if conn != nil {
		_ = conn.Close()
		logging.Debug("Protocol", "Disconnected from %s", c.opts.SocketPath)
	}
}

// Call sends one request and waits for its correlated response, the
// per-request timeout, or ctx cancellation. params is marshaled as the
// request's params field.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling params for %s: %w", method, err)
		}
		raw = data
	}
	return c.SendRequest(ctx, Request{
		ID:     uuid.NewString(),
		Method: method,
		Params: raw,
	})
}

// SendRequest sends a fully-formed request. The request id must be
// unique among in-flight requests; it is the sole correlation key for
// the response.
func (c *Client) SendRequest(ctx context.Context, req Request) (json.RawMessage, error) {
	frame, err := EncodeFrame(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, &ConnectionError{Op: "send", Err: fmt.Errorf("client is %s", c.state)}
	}
	if _, dup := c.pending[req.ID]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("request id %q is already in flight", req.ID)
	}
	conn := c.conn
	p := &pendingRequest{ch: make(chan callOutcome, 1)}
	p.timer = time.AfterFunc(c.opts.RequestTimeout, func() {
		c.rejectPending(req.ID, &RequestTimeoutError{ID: req.ID, Timeout: c.opts.RequestTimeout})
	})
	c.pending[req.ID] = p
	c.mu.Unlock()

	c.wmu.Lock()
	_, err = conn.Write(frame)
	c.wmu.Unlock()
	if err != nil {
		// A write failure fails this one request; connection-level
		// fallout is reported by the read loop.
		c.removePending(req.ID)
		return nil, &ConnectionError{Op: "write", Err: err}
	}

	select {
	case outcome := <-p.ch:
		return outcome.result, outcome.err
	case <-ctx.Done():
		c.removePending(req.ID)
		return nil, ctx.Err()
	}
}

// readLoop accumulates incoming bytes and splits off complete lines.
// An incomplete trailing fragment stays buffered for the next read. It
// exits when the connection drops.
func (c *Client) readLoop(conn net.Conn, gen int) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}
		c.dispatchLine(line)
	}
}

// dispatchLine parses one complete frame and settles the matching
// pending request. A line that fails to parse is reported as a protocol
// error but does not abort the connection or other in-flight requests.
func (c *Client) dispatchLine(line []byte) {
	resp, err := DecodeResponse(line)
	if err != nil {
		logging.Warn("Protocol", "Discarding malformed frame: %v", err)
		c.emit(Event{Type: EventProtocolError, Err: err})
		return
	}

	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		// Response with no matching id (late arrival after timeout, or
		// a worker bug): discard.
		logging.Debug("Protocol", "Discarding response with unknown id %s", resp.ID)
		return
	}

	p.timer.Stop()
	if resp.Error != nil {
		p.ch <- callOutcome{err: resp.Error}
		return
	}
	p.ch <- callOutcome{result: resp.Result}
}

// handleDisconnect runs once per dropped connection: it rejects all
// pending requests and, when enabled, schedules a reconnection.
func (c *Client) handleDisconnect(gen int, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		// A newer connection replaced this one (explicit Disconnect or
		// a completed reconnect); nothing to clean up.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	pending := c.takePendingLocked()

	reconnect := c.opts.AutoReconnect
	if reconnect {
		c.state = StateReconnecting
		c.scheduleReconnectLocked()
	} else {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	rejectAll(pending)
	logging.Warn("Protocol", "Connection to %s lost: %v", c.opts.SocketPath, cause)
	c.emit(Event{Type: EventDisconnected, Err: cause})
}

// scheduleReconnectLocked arms the single reconnect timer. Caller holds
// c.mu.
func (c *Client) scheduleReconnectLocked() {
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.tryReconnect(gen)
	})
}

func (c *Client) tryReconnect(gen int) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	metrics.RecordReconnect("attempt")
	logging.Debug("Protocol", "Reconnect attempt %d/%d to %s", attempt, c.opts.MaxReconnectAttempts, c.opts.SocketPath)

	conn, err := c.opts.Dial()
	if err != nil {
		c.mu.Lock()
		if c.gen != gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		if attempt >= c.opts.MaxReconnectAttempts {
			c.state = StateDisconnected
			c.reconnectTimer = nil
			c.mu.Unlock()
			metrics.RecordReconnect("exhausted")
			logging.Error("Protocol", err, "Reconnect to %s failed after %d attempts", c.opts.SocketPath, attempt)
			c.emit(Event{Type: EventReconnectFailed, Err: &ReconnectExhaustedError{Attempts: attempt}, Attempt: attempt})
			return
		}
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateReconnecting {
		// Disconnect raced the successful dial; drop the connection.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.reconnectTimer = nil
	c.gen++
	newGen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, newGen)
	metrics.RecordReconnect("success")
	logging.Info("Protocol", "Reconnected to %s", c.opts.SocketPath)
	c.emit(Event{Type: EventReconnected, Attempt: attempt})
}

// rejectPending settles one pending request with err and removes it.
func (c *Client) rejectPending(id string, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.ch <- callOutcome{err: err}
}

// removePending drops a pending request without settling it (the caller
// already has its outcome).
func (c *Client) removePending(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		p.timer.Stop()
	}
}

// takePendingLocked empties the pending map and returns the entries for
// rejection outside the lock. Caller holds c.mu.
func (c *Client) takePendingLocked() map[string]*pendingRequest {
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	return pending
}

func rejectAll(pending map[string]*pendingRequest) {
	for id, p := range pending {
		p.timer.Stop()
		p.ch <- callOutcome{err: &ConnectionLostError{ID: id}}
	}
}

func (c *Client) emit(event Event) {
	select {
	case c.events <- event:
	default:
		// Slow consumer; drop rather than wedge the connection.
	}
}
