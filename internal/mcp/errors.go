package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed exchange.
type ErrorKind int

const (
	// KindTransport covers connect failures, timeouts, non-2xx replies without
	// a decodable error body and unparseable SSE streams.
	KindTransport ErrorKind = iota + 1
	// KindProtocol covers id mismatches, replies missing both result and error,
	// malformed JSON and result shapes this client does not understand.
	KindProtocol
	// KindApplication is the server's own JSON-RPC error, passed through verbatim.
	KindApplication
	// KindUsage is a local misuse, such as calling a tool before initialize.
	KindUsage
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// ErrNotInitialized is wrapped by usage errors for calls made before a
// successful Initialize.
var ErrNotInitialized = errors.New("mcp: session not initialized")

// Error is the failure outcome of a session operation or tool call.
type Error struct {
	Kind    ErrorKind
	Code    int             // JSON-RPC code for application errors
	Message string          // human-readable description
	Data    json.RawMessage // optional error data from the server

	// StatusCode and Body are set for HTTP-level transport failures.
	StatusCode int
	Body       string

	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindApplication && e.Code == 0:
		// isError tool results carry no JSON-RPC code.
		return "tool error: " + e.Message
	case e.Kind == KindApplication:
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error: HTTP %d: %s", e.Kind, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// fromRPCError lifts a server error into the taxonomy.
func fromRPCError(rpcErr *RPCError) *Error {
	return &Error{
		Kind:    KindApplication,
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
		Data:    rpcErr.Data,
		Err:     rpcErr,
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
