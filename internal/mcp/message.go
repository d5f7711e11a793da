package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const jsonrpcVersion = "2.0"

// ID is a JSON-RPC request identifier. It is either a number or a string.
// The zero ID means "absent" (notifications and synthesized failures).
type ID struct {
	num   int64
	str   string
	isStr bool
}

// Int64ID returns a numeric ID.
func Int64ID(n int64) ID { return ID{num: n} }

// StringID returns a string ID.
func StringID(s string) ID { return ID{str: s, isStr: true} }

// IsZero reports whether the ID is absent.
func (id ID) IsZero() bool { return !id.isStr && id.num == 0 }

func (id ID) String() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	if id.num == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(id.num, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an integer or string: %s", data)
	}
	*id = Int64ID(n)
	return nil
}

// Request is an outgoing JSON-RPC request. A zero ID makes it a notification.
type Request struct {
	ID     ID
	Method string
	// Params is nil when the request carries no params.
	Params json.RawMessage
}

// NewRequest builds a request, encoding params. Params that encode to null or
// an empty object are dropped, so they are omitted from the wire.
func NewRequest(id ID, method string, params any) (*Request, error) {
	req := &Request{ID: id, Method: method}
	if params == nil {
		return req, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	if isEmptyParams(data) {
		return req, nil
	}
	req.Params = data
	return req, nil
}

func isEmptyParams(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err == nil && len(m) == 0 {
		return true
	}
	return false
}

// wireRequest fixes field order on the wire: jsonrpc, method, id, params.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      *ID             `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Request) MarshalJSON() ([]byte, error) {
	w := wireRequest{JSONRPC: jsonrpcVersion, Method: r.Method}
	if !r.ID.IsZero() {
		id := r.ID
		w.ID = &id
	}
	if !isEmptyParams(r.Params) && len(r.Params) > 0 {
		w.Params = r.Params
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.JSONRPC != jsonrpcVersion {
		return fmt.Errorf("unsupported jsonrpc version %q", w.JSONRPC)
	}
	*r = Request{Method: w.Method}
	if w.ID != nil {
		r.ID = *w.ID
	}
	if len(w.Params) > 0 && !isEmptyParams(w.Params) {
		r.Params = w.Params
	}
	return nil
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a decoded JSON-RPC reply. Exactly one of Result, Error or
// Failure is set:
//   - Result: the server answered successfully.
//   - Error: the server answered with a JSON-RPC error.
//   - Failure: no usable reply; synthesized locally, carries no ID.
type Response struct {
	ID      ID
	Result  json.RawMessage
	Error   *RPCError
	Failure *Error
}

// failed synthesizes a local failure response.
func failed(kind ErrorKind, format string, args ...any) *Response {
	return &Response{Failure: &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler. Local failures have no wire form.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Failure != nil {
		return nil, fmt.Errorf("local failure has no wire encoding: %w", r.Failure)
	}
	w := wireResponse{JSONRPC: jsonrpcVersion, Result: r.Result, Error: r.Error}
	if !r.ID.IsZero() {
		id := r.ID
		w.ID = &id
	}
	return json.Marshal(w)
}

// errServerMessage marks a payload that is a server-initiated message
// (a notification or request) rather than a reply.
var errServerMessage = fmt.Errorf("payload is a server-initiated message")

// errNoOutcome marks a reply that carries neither result nor error.
var errNoOutcome = fmt.Errorf("response carries neither result nor error")

// decodeResponse parses one JSON-RPC reply. It rejects payloads that carry
// neither result nor error, and reports server-initiated messages with
// errServerMessage so SSE scanning can skip them.
func decodeResponse(data []byte) (*Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Method != "" {
		return nil, errServerMessage
	}
	resp := &Response{Result: w.Result, Error: w.Error}
	if w.ID != nil {
		resp.ID = *w.ID
	}
	if resp.Error == nil && len(resp.Result) == 0 {
		return nil, errNoOutcome
	}
	return resp, nil
}
