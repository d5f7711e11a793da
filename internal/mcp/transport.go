// Package mcp provides the MCP client protocol layer: JSON-RPC wire types,
// an HTTP transport that understands both JSON and SSE replies, request
// correlation and the stateful Session.
package mcp

import (
	"context"
	"encoding/json"
)

// Transport carries one JSON-RPC exchange per call.
//
// Send never returns a Go error: network, timeout and decode failures come
// back as a Response whose Failure field is set. This keeps every failure on
// the same path the caller already inspects for JSON-RPC errors.
type Transport interface {
	// Send posts a request and waits for its reply.
	Send(ctx context.Context, req *Request) *Response
	// Notify posts a notification. No reply body is expected.
	Notify(ctx context.Context, method string, params any) error
	// Close releases idle connections.
	Close() error
}

// ToolDescriptor describes a tool advertised by tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// SchemaMap decodes InputSchema into a generic map.
// Returns nil when the tool declares no schema or it is not an object.
func (t ToolDescriptor) SchemaMap() map[string]any {
	if len(t.InputSchema) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(t.InputSchema, &m); err != nil {
		return nil
	}
	return m
}

// ServerInfo is what the server advertised during initialize.
type ServerInfo struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	ProtocolVersion string         `json:"-"`
	Capabilities    map[string]any `json:"-"`
}

// ClientInfo identifies this client during initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
