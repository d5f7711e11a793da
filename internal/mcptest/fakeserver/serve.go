package fakeserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Server is a fake MCP server speaking JSON-RPC over HTTP POST.
// It handles initialize, tools/list and tools/call, with configurable delays,
// errors and reply encodings.
type Server struct {
	cfg Config

	mu       sync.Mutex
	requests []RecordedRequest
}

// New creates a fake server. Mount it with httptest.NewServer.
func New(cfg Config) *Server {
	if cfg.Mode == "" {
		cfg.Mode = ModeJSON
	}
	return &Server{cfg: cfg}
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Count returns how many requests for method were received.
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if s.cfg.SessionID != "" {
		w.Header().Set("Mcp-Session-Id", s.cfg.SessionID)
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeReply(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			ID:      json.RawMessage(`null`),
			Error:   &JSONRPCError{Code: -32700, Message: "Parse error"},
		})
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: req.Method,
		ID:     req.ID,
		Params: req.Params,
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	// Notifications carry no id and get no body.
	if len(req.ID) == 0 {
		if s.cfg.RejectNotifications {
			http.Error(w, "notifications not supported", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// Apply delay if configured
	if delay, ok := s.cfg.Delays[req.Method]; ok {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if s.cfg.Malformed {
		s.writeMalformed(w)
		return
	}

	status := http.StatusOK
	if code, ok := s.cfg.StatusCodes[req.Method]; ok {
		status = code
	}
	if s.cfg.PlainErrorBody && (status < 200 || status > 299) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "upstream unavailable")
		return
	}

	s.writeReply(w, status, s.handle(req))
}

func (s *Server) handle(req rpcRequest) rpcResponse {
	id := req.ID
	if s.cfg.SendMismatchedID {
		id = json.RawMessage(`99999`)
	}
	if s.cfg.OmitResultAndError {
		return rpcResponse{JSONRPC: "2.0", ID: id}
	}

	// Check for forced error
	if rpcErr, ok := s.cfg.Errors[req.Method]; ok {
		return errorResponse(id, rpcErr)
	}

	switch req.Method {
	case "initialize":
		var params struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		_ = json.Unmarshal(req.Params, &params)
		version := params.ProtocolVersion
		if version == "" {
			version = "2024-11-05"
		}
		return resultResponse(id, InitializeResult{
			ProtocolVersion: version,
			ServerInfo:      ServerInfo{Name: "fake-server", Version: "1.0.0"},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		})

	case "tools/list":
		tools := s.cfg.Tools
		if tools == nil {
			tools = []Tool{}
		}
		return resultResponse(id, ToolsListResult{Tools: tools})

	case "tools/call":
		return s.handleToolCall(id, req.Params)

	default:
		return errorResponse(id, JSONRPCError{Code: -32601, Message: "Method not found"})
	}
}

func (s *Server) handleToolCall(id json.RawMessage, raw json.RawMessage) rpcResponse {
	var params ToolCallParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		return errorResponse(id, JSONRPCError{Code: -32602, Message: "Invalid params"})
	}

	if result, ok := s.cfg.ToolResults[params.Name]; ok {
		return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
	}

	if s.cfg.ToolHandler != nil {
		content, isError, err := s.cfg.ToolHandler(params.Name, params.Arguments)
		if err != nil {
			return errorResponse(id, JSONRPCError{Code: -32603, Message: err.Error()})
		}
		return resultResponse(id, ToolCallResult{Content: content, IsError: isError})
	}

	if s.cfg.EchoToolCalls {
		args := string(params.Arguments)
		if args == "" {
			args = "{}"
		}
		return resultResponse(id, ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("%s: %s", params.Name, args)}},
		})
	}

	for _, t := range s.cfg.Tools {
		if t.Name == params.Name {
			return resultResponse(id, ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: "ok"}},
			})
		}
	}
	return errorResponse(id, JSONRPCError{Code: -32602, Message: "Unknown tool: " + params.Name})
}

// writeReply encodes resp as JSON or as an SSE stream per the configured mode.
func (s *Server) writeReply(w http.ResponseWriter, status int, resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.cfg.Mode != ModeSSE {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if s.cfg.SendCommentsInStream {
		_, _ = io.WriteString(w, ": keep-alive\n\n")
	}
	// Stream realism: send notification before response if configured
	if s.cfg.SendNotificationBeforeResponse {
		note, _ := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "notifications/progress", Params: map[string]any{"progress": 50}})
		_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", note)
	}
	if s.cfg.SendCommentsInStream {
		_, _ = io.WriteString(w, "event: message\nid: 1\n")
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) writeMalformed(w http.ResponseWriter) {
	if s.cfg.Mode == ModeSSE {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: this is not valid json\n\ndata: {\"jsonrpc\":\n\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "this is not valid json")
}

func resultResponse(id json.RawMessage, result any) rpcResponse {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, JSONRPCError{Code: -32603, Message: err.Error()})
	}
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: data}
}

func errorResponse(id json.RawMessage, rpcErr JSONRPCError) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcErr}
}
