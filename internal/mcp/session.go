package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thedeathtitan/mcpbridge/internal/logging"
)

// DefaultProtocolVersion is the MCP protocol version offered during initialize.
const DefaultProtocolVersion = "2024-11-05"

// State is the handshake state of a Session.
type State int32

const (
	StateUnconnected State = iota
	StateInitialized
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateInitialized:
		return "initialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	ClientInfo      ClientInfo
	ProtocolVersion string         // DefaultProtocolVersion when empty
	Capabilities    map[string]any // DefaultCapabilities() when nil
	IDStrategy      IDStrategy
	Logger          *logging.Logger
}

// DefaultCapabilities returns the client capabilities offered during initialize.
func DefaultCapabilities() map[string]any {
	return map[string]any{
		"roots":    map[string]any{"listChanged": true},
		"sampling": map[string]any{},
	}
}

// versionSetter is implemented by transports that send the negotiated
// protocol version as a header.
type versionSetter interface {
	SetProtocolVersion(version string)
}

// Session is a stateful MCP client. Calls are serialized: one request is
// outstanding at a time and each waits for its matching reply.
type Session struct {
	transport  Transport
	correlator *Correlator
	opts       SessionOptions
	logger     *logging.Logger

	state atomic.Int32

	mu           sync.Mutex
	closed       bool
	initializing bool
	server       *ServerInfo
	tools        []ToolDescriptor
}

// NewSession creates a session over transport. No network traffic happens
// until Initialize.
func NewSession(transport Transport, opts SessionOptions) *Session {
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = DefaultProtocolVersion
	}
	if opts.Capabilities == nil {
		opts.Capabilities = DefaultCapabilities()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		transport:  transport,
		correlator: NewCorrelator(opts.IDStrategy),
		opts:       opts,
		logger:     logger,
	}
}

// State returns the current handshake state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ServerInfo returns what the server advertised, or nil before Initialize.
func (s *Session) ServerInfo() *ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// initializeParams is the params for the initialize request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// initializeResult is the result of the initialize request.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// Initialize performs the MCP handshake. It must succeed before any other
// operation. After the reply it sends notifications/initialized; a failure
// there is logged and does not undo the handshake.
func (s *Session) Initialize(ctx context.Context) (*ServerInfo, error) {
	if err := s.beginInitialize(); err != nil {
		return nil, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			s.mu.Lock()
			s.initializing = false
			s.mu.Unlock()
		}
	}()

	params := initializeParams{
		ProtocolVersion: s.opts.ProtocolVersion,
		Capabilities:    s.opts.Capabilities,
		ClientInfo:      s.opts.ClientInfo,
	}
	raw, callErr := s.call(ctx, "initialize", params)
	if callErr != nil {
		return nil, callErr
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		e := protocolErrorf("decode initialize result: %v", err)
		s.logger.Warn("mcp protocol error", "method", "initialize", "kind", e.Kind.String(), "err", e.Message)
		return nil, e
	}

	info := result.ServerInfo
	info.ProtocolVersion = result.ProtocolVersion
	if info.ProtocolVersion == "" {
		info.ProtocolVersion = s.opts.ProtocolVersion
	}
	info.Capabilities = result.Capabilities

	s.mu.Lock()
	s.server = &info
	s.initializing = false
	s.state.Store(int32(StateInitialized))
	s.mu.Unlock()
	succeeded = true

	if vs, ok := s.transport.(versionSetter); ok {
		vs.SetProtocolVersion(info.ProtocolVersion)
	}

	if err := s.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		s.logger.Warn("initialized notification failed", "err", err)
	}
	s.state.Store(int32(StateReady))

	s.logger.Info("mcp session ready",
		"server", info.Name,
		"version", info.Version,
		"protocolVersion", info.ProtocolVersion,
	)
	return &info, nil
}

// beginInitialize claims the handshake. Only one Initialize may be in
// flight, and none after one has succeeded.
func (s *Session) beginInitialize() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initializing {
		return &Error{Kind: KindUsage, Message: "session initialize already in progress"}
	}
	if st := s.State(); st != StateUnconnected {
		return &Error{Kind: KindUsage, Message: "session already " + st.String()}
	}
	s.initializing = true
	return nil
}

// toolsListResult is the result of tools/list.
type toolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ListTools returns the server's tools in the order advertised. The list is
// fetched once and reused for the rest of the session.
func (s *Session) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cached := s.tools
	s.mu.Unlock()
	if cached != nil {
		return append([]ToolDescriptor(nil), cached...), nil
	}

	raw, callErr := s.call(ctx, "tools/list", nil)
	if callErr != nil {
		return nil, callErr
	}

	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		e := protocolErrorf("decode tools/list result: %v", err)
		s.logger.Warn("mcp protocol error", "method", "tools/list", "kind", e.Kind.String(), "err", e.Message)
		return nil, e
	}
	if result.Tools == nil {
		result.Tools = []ToolDescriptor{}
	}

	s.mu.Lock()
	s.tools = result.Tools
	s.mu.Unlock()
	return append([]ToolDescriptor(nil), result.Tools...), nil
}

// toolCallParams is the params for tools/call.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallTool invokes a tool. It never returns nil and never panics on a bad
// reply: every failure is reported in the result's Err.
func (s *Session) CallTool(ctx context.Context, name string, arguments map[string]any) *ToolCallResult {
	if err := s.requireReady(); err != nil {
		return failedResult(name, err)
	}
	if name == "" {
		return failedResult(name, &Error{Kind: KindUsage, Message: "tool name is required"})
	}
	if arguments == nil {
		arguments = map[string]any{}
	}

	raw, callErr := s.call(ctx, "tools/call", toolCallParams{Name: name, Arguments: arguments})
	if callErr != nil {
		return failedResult(name, callErr)
	}

	result := decodeToolResult(name, raw)
	if result.Err != nil {
		switch result.Err.Kind {
		case KindProtocol:
			s.logger.Warn("mcp protocol error", "method", "tools/call", "tool", name, "kind", "protocol", "err", result.Err.Message)
		default:
			s.logger.Debug("tool reported error", "tool", name, "err", result.Err.Message)
		}
		return result
	}
	s.logger.Debug("tool call succeeded", "tool", name, "shape", result.Shape.String())
	return result
}

// Close releases the transport. Later calls fail with a usage error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.transport.Close()
}

func (s *Session) requireReady() *Error {
	if s.State() != StateReady {
		return &Error{Kind: KindUsage, Message: ErrNotInitialized.Error(), Err: ErrNotInitialized}
	}
	return nil
}

// call makes one JSON-RPC exchange and returns the result payload.
// The call is serialized with a mutex so replies are consumed in issue order.
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &Error{Kind: KindUsage, Message: "session closed"}
	}

	id := s.correlator.Next()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, &Error{Kind: KindUsage, Message: err.Error(), Err: err}
	}

	resp := s.transport.Send(ctx, req)
	if e := s.correlator.Match(id, resp); e != nil {
		if e.Kind == KindProtocol {
			s.logger.Warn("mcp protocol error", "method", method, "id", id.String(), "kind", "protocol", "err", e.Message)
		}
		return nil, e
	}
	if resp.Error != nil {
		e := fromRPCError(resp.Error)
		s.logger.Debug("mcp application error", "method", method, "id", id.String(), "code", e.Code, "err", e.Message)
		return nil, e
	}
	return resp.Result, nil
}
