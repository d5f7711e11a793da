// Package fakeserver provides a fake MCP server for testing.
package fakeserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// Mode selects how replies are encoded.
type Mode string

const (
	ModeJSON Mode = "json"
	ModeSSE  Mode = "sse"
)

// Config controls the fake server's behavior.
type Config struct {
	// Tools to return from tools/list
	Tools []Tool `json:"tools"`

	// Mode selects JSON or SSE replies. Defaults to ModeJSON.
	Mode Mode `json:"mode"`

	// Per-method delays (simulate slow responses)
	// NOTE: Use short delays (10-50ms) in tests to avoid slow suite.
	Delays map[string]time.Duration `json:"delays"`

	// Per-method forced errors (JSON-RPC error responses)
	Errors map[string]JSONRPCError `json:"errors"`

	// Per-method HTTP status codes. The body still carries the reply unless
	// PlainErrorBody is set.
	StatusCodes    map[string]int `json:"statusCodes"`
	PlainErrorBody bool           `json:"plainErrorBody"`

	// SessionID is returned in the Mcp-Session-Id header when set.
	SessionID string `json:"sessionId"`

	// RejectNotifications answers notifications with 400.
	RejectNotifications bool `json:"rejectNotifications"`

	// Protocol edge cases for stream realism
	SendNotificationBeforeResponse bool `json:"sendNotificationBeforeResponse"` // SSE: emit a server notification line first
	SendCommentsInStream           bool `json:"sendCommentsInStream"`           // SSE: emit comment and event lines
	SendMismatchedID               bool `json:"sendMismatchedID"`               // reply with the wrong id
	OmitResultAndError             bool `json:"omitResultAndError"`             // reply with neither result nor error

	// Malformed writes invalid JSON (or, in SSE mode, data lines that never parse).
	Malformed bool `json:"malformed"`

	// Tool call handling
	ToolHandler   ToolHandler                `json:"-"`             // Custom handler for tools/call (not JSON-serializable)
	ToolResults   map[string]json.RawMessage `json:"toolResults"`   // verbatim tools/call results by tool name
	EchoToolCalls bool                       `json:"echoToolCalls"` // If true, tools/call returns the tool name and arguments as text
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// rpcNotification is a JSON-RPC 2.0 notification.
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerInfo describes the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes server capabilities.
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates the server supports tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams is the params for tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult is the result of tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolHandler is a function that handles a tool call.
type ToolHandler func(name string, arguments json.RawMessage) ([]ContentBlock, bool, error)

// RecordedRequest is one request the server received.
type RecordedRequest struct {
	Method string
	ID     json.RawMessage
	Params json.RawMessage
	Header http.Header
	Body   []byte
}
