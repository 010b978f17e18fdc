package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON-RPC flavored error codes used in ErrorPayload.Code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Request is one framed request: id is caller-generated and unique
// among concurrently in-flight requests.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one framed response, correlated to a Request by id.
// Exactly one of Result or Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload carries a remote failure across the wire.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error makes ErrorPayload usable as the rejection error of a pending
// request.
func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// NewErrorPayload builds an ErrorPayload with a formatted message.
func NewErrorPayload(code int, format string, args ...any) *ErrorPayload {
	return &ErrorPayload{Code: code, Message: fmt.Sprintf(format, args...)}
}

// EncodeFrame serializes v as a single newline-terminated line. The
// encoded payload must not contain a raw newline; encoding/json escapes
// newlines inside strings, so this only rejects exotic custom
// marshalers.
func EncodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	if bytes.ContainsRune(data, '\n') {
		return nil, &ProtocolError{Detail: "payload contains raw newline"}
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses one line into a Request.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, &ProtocolError{Detail: "malformed request frame", Err: err}
	}
	if req.Method == "" {
		return Request{}, &ProtocolError{Detail: "request frame missing method"}
	}
	return req, nil
}

// DecodeResponse parses one line into a Response.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, &ProtocolError{Detail: "malformed response frame", Err: err}
	}
	return resp, nil
}
