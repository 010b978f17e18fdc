package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"conductor/pkg/logging"
)

// HandlerFunc handles one method invocation on the worker side. It
// returns either a result value (marshaled into the response) or an
// error payload.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *ErrorPayload)

// Server is the worker-side unix socket listener. Each connection gets
// its own read loop; frames are processed one line at a time, and a
// malformed line is answered with a parse error without dropping the
// connection.
type Server struct {
	socketPath string

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server bound to socketPath once started.
func NewServer(socketPath string) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
	}
}

// SocketPath returns the path the server binds to.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Handle registers a method handler. Must be called before Start.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Start binds the socket and begins accepting connections. A stale
// socket file from a previous run is removed first.
func (s *Server) Start(ctx context.Context) error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding socket %s: %w", s.socketPath, err)
	}
	// Owner-only: the socket carries deployment commands.
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	logging.Info("ProtocolServer", "Listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight connections, and
// removes the socket file.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		logging.Warn("ProtocolServer", "Could not remove socket %s: %v", s.socketPath, err)
	}
	logging.Info("ProtocolServer", "Stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			logging.Error("ProtocolServer", err, "Accept failed")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	logging.Debug("ProtocolServer", "Client connected")
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			logging.Debug("ProtocolServer", "Client disconnected: %v", err)
			return
		}

		resp := s.process(line)
		frame, err := EncodeFrame(resp)
		if err != nil {
			// The response itself would not frame; answer with a bare
			// internal error instead.
			frame, _ = EncodeFrame(Response{
				ID:    resp.ID,
				Error: NewErrorPayload(CodeInternal, "failed to serialize response"),
			})
		}
		if _, err := conn.Write(frame); err != nil {
			logging.Debug("ProtocolServer", "Write failed, closing connection: %v", err)
			return
		}
	}
}

// process turns one request line into a response, containing handler
// panics so one bad request cannot end the connection.
func (s *Server) process(line []byte) Response {
	req, err := DecodeRequest(line)
	if err != nil {
		logging.Warn("ProtocolServer", "Malformed frame: %v", err)
		return Response{Error: NewErrorPayload(CodeParseError, "parse error: %v", err)}
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, Error: NewErrorPayload(CodeMethodNotFound, "method not found: %s", req.Method)}
	}

	result, errPayload := s.invoke(handler, req)
	if errPayload != nil {
		return Response{ID: req.ID, Error: errPayload}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return Response{ID: req.ID, Error: NewErrorPayload(CodeInternal, "marshaling result: %v", err)}
	}
	return Response{ID: req.ID, Result: data}
}

func (s *Server) invoke(handler HandlerFunc, req Request) (result any, errPayload *ErrorPayload) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("ProtocolServer", fmt.Errorf("%v", rec), "Handler for %s panicked", req.Method)
			result = nil
			errPayload = NewErrorPayload(CodeInternal, "internal error: %v", rec)
		}
	}()
	return handler(s.ctx, req.Params)
}
