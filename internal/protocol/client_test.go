package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPeer is the fake worker end of an in-memory connection.
type testPeer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (p *testPeer) readRequest(t *testing.T) Request {
	t.Helper()
	line, err := p.reader.ReadBytes('\n')
	require.NoError(t, err)
	req, err := DecodeRequest(line)
	require.NoError(t, err)
	return req
}

func (p *testPeer) writeResponse(t *testing.T, resp Response) {
	t.Helper()
	frame, err := EncodeFrame(resp)
	require.NoError(t, err)
	_, err = p.conn.Write(frame)
	require.NoError(t, err)
}

func (p *testPeer) writeRaw(t *testing.T, data []byte) {
	t.Helper()
	_, err := p.conn.Write(data)
	require.NoError(t, err)
}

// newPipeClient returns a connected client whose dialer hands the
// worker end of each connection to the peers channel.
func newPipeClient(t *testing.T, opts ClientOptions) (*Client, chan *testPeer) {
	t.Helper()
	peers := make(chan *testPeer, 8)
	opts.Dial = func() (net.Conn, error) {
		clientEnd, serverEnd := net.Pipe()
		peers <- &testPeer{conn: serverEnd, reader: bufio.NewReader(serverEnd)}
		return clientEnd, nil
	}
	client := NewClient(opts)
	require.NoError(t, client.Connect())
	t.Cleanup(client.Disconnect)
	return client, peers
}

func waitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	<-peers

	assert.Equal(t, StateConnected, client.State())
	assert.NoError(t, client.Connect())
	assert.Equal(t, StateConnected, client.State())
}

func TestCallResolvesWithMatchingResponse(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	go func() {
		req := peer.readRequest(t)
		peer.writeResponse(t, Response{ID: req.ID, Result: json.RawMessage(`{"pong":true}`)})
	}()

	result, err := client.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pong":true}`, string(result))
	assert.Equal(t, 0, client.PendingCount())
}

func TestCallRejectsWithRemoteError(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	go func() {
		req := peer.readRequest(t)
		peer.writeResponse(t, Response{ID: req.ID, Error: NewErrorPayload(CodeInvalidParams, "missing platform")})
	}()

	_, err := client.Call(context.Background(), "deploy.run", map[string]any{})
	require.Error(t, err)
	var payload *ErrorPayload
	require.ErrorAs(t, err, &payload)
	assert.Equal(t, CodeInvalidParams, payload.Code)
	assert.Contains(t, payload.Message, "missing platform")
	assert.Equal(t, 0, client.PendingCount())
}

func TestResponsesCorrelateById(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	// Answer the "slow" request last, regardless of arrival order:
	// correlation is by id, not by send order.
	go func() {
		byMethod := map[string]Request{}
		for len(byMethod) < 2 {
			req := peer.readRequest(t)
			byMethod[req.Method] = req
		}
		peer.writeResponse(t, Response{ID: byMethod["fast"].ID, Result: json.RawMessage(`"fast-result"`)})
		peer.writeResponse(t, Response{ID: byMethod["slow"].ID, Result: json.RawMessage(`"slow-result"`)})
	}()

	type reply struct {
		result json.RawMessage
		err    error
	}
	slowCh := make(chan reply, 1)
	go func() {
		res, err := client.Call(context.Background(), "slow", nil)
		slowCh <- reply{res, err}
	}()

	fast, err := client.Call(context.Background(), "fast", nil)
	require.NoError(t, err)
	assert.Equal(t, `"fast-result"`, string(fast))

	slow := <-slowCh
	require.NoError(t, slow.err)
	assert.Equal(t, `"slow-result"`, string(slow.result))
	assert.Equal(t, 0, client.PendingCount())
}

func TestRequestTimeoutIsLocal(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{RequestTimeout: 50 * time.Millisecond})
	peer := <-peers

	// The peer reads the request but never answers it.
	go peer.readRequest(t)

	_, err := client.Call(context.Background(), "never", nil)
	var timeout *RequestTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 0, client.PendingCount())

	// The connection survives the timeout.
	assert.Equal(t, StateConnected, client.State())
}

func TestFrameReassembly(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	go func() {
		req := peer.readRequest(t)
		full := fmt.Sprintf(`{"id":%q,"result":{"assembled":true}}`+"\n", req.ID)
		// Deliver the frame in two writes split mid-payload; the client
		// must parse exactly one message.
		peer.writeRaw(t, []byte(full[:10]))
		time.Sleep(20 * time.Millisecond)
		peer.writeRaw(t, []byte(full[10:]))
	}()

	result, err := client.Call(context.Background(), "chunked", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assembled":true}`, string(result))
}

func TestMalformedFrameDoesNotAbortConnection(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	go func() {
		req := peer.readRequest(t)
		peer.writeRaw(t, []byte("{not json}\n"))
		peer.writeResponse(t, Response{ID: req.ID, Result: json.RawMessage(`"ok"`)})
	}()

	result, err := client.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(result))

	ev := waitEvent(t, client.Events(), EventProtocolError)
	var protoErr *ProtocolError
	assert.ErrorAs(t, ev.Err, &protoErr)
	assert.Equal(t, StateConnected, client.State())
}

func TestUnmatchedResponseIsDiscarded(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	go func() {
		req := peer.readRequest(t)
		peer.writeResponse(t, Response{ID: "no-such-request", Result: json.RawMessage(`1`)})
		peer.writeResponse(t, Response{ID: req.ID, Result: json.RawMessage(`2`)})
	}()

	result, err := client.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, `2`, string(result))
}

func TestRemoteCloseRejectsPendingRequests(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "doomed", nil)
		errCh <- err
	}()

	peer.readRequest(t)
	require.Eventually(t, func() bool { return client.PendingCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, peer.conn.Close())

	var lost *ConnectionLostError
	require.ErrorAs(t, <-errCh, &lost)
	assert.Equal(t, 0, client.PendingCount())
	waitEvent(t, client.Events(), EventDisconnected)
	assert.Equal(t, StateDisconnected, client.State())
}

func TestDisconnectRejectsPendingAndIsIdempotent(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "doomed", nil)
		errCh <- err
	}()

	peer.readRequest(t)
	require.Eventually(t, func() bool { return client.PendingCount() == 1 }, time.Second, 5*time.Millisecond)

	client.Disconnect()
	var lost *ConnectionLostError
	require.ErrorAs(t, <-errCh, &lost)
	assert.Equal(t, 0, client.PendingCount())

	// Second disconnect is a no-op.
	client.Disconnect()
	assert.Equal(t, StateDisconnected, client.State())

	// Sending while disconnected fails with a connection error.
	_, err := client.Call(context.Background(), "ping", nil)
	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestReconnectAfterDrop(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{
		AutoReconnect:        true,
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 5,
	})
	peer := <-peers

	require.NoError(t, peer.conn.Close())
	waitEvent(t, client.Events(), EventDisconnected)

	ev := waitEvent(t, client.Events(), EventReconnected)
	assert.Equal(t, 1, ev.Attempt)
	assert.Equal(t, StateConnected, client.State())

	// The fresh connection carries requests again.
	peer = <-peers
	go func() {
		req := peer.readRequest(t)
		peer.writeResponse(t, Response{ID: req.ID, Result: json.RawMessage(`"back"`)})
	}()
	result, err := client.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, `"back"`, string(result))
}

func TestReconnectExhaustionIsTerminal(t *testing.T) {
	const maxAttempts = 3

	var failDial atomic.Bool
	var dials atomic.Int32
	peers := make(chan *testPeer, 8)

	client := NewClient(ClientOptions{
		AutoReconnect:        true,
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: maxAttempts,
		Dial: func() (net.Conn, error) {
			dials.Add(1)
			if failDial.Load() {
				return nil, errors.New("worker is gone")
			}
			clientEnd, serverEnd := net.Pipe()
			peers <- &testPeer{conn: serverEnd, reader: bufio.NewReader(serverEnd)}
			return clientEnd, nil
		},
	})
	require.NoError(t, client.Connect())
	t.Cleanup(client.Disconnect)
	peer := <-peers

	failDial.Store(true)
	require.NoError(t, peer.conn.Close())

	ev := waitEvent(t, client.Events(), EventReconnectFailed)
	var exhausted *ReconnectExhaustedError
	require.ErrorAs(t, ev.Err, &exhausted)
	assert.Equal(t, maxAttempts, exhausted.Attempts)
	assert.Equal(t, StateDisconnected, client.State())

	// Exactly maxAttempts reconnect dials after the initial connect,
	// and no further retries after the terminal notification.
	dialsAtFailure := dials.Load()
	assert.Equal(t, int32(1+maxAttempts), dialsAtFailure)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, dialsAtFailure, dials.Load())

	// Only one terminal notification was raised.
	select {
	case ev := <-client.Events():
		assert.NotEqual(t, EventReconnectFailed, ev.Type)
	default:
	}

	// An explicit Connect retry works again once dialing succeeds.
	failDial.Store(false)
	require.NoError(t, client.Connect())
	assert.Equal(t, StateConnected, client.State())
}

func TestCallHonorsContextCancellation(t *testing.T) {
	client, peers := newPipeClient(t, ClientOptions{})
	peer := <-peers
	go peer.readRequest(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, "slow", nil)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return client.PendingCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, client.PendingCount())
}
