package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thedeathtitan/mcpbridge/internal/logging"
	"github.com/thedeathtitan/mcpbridge/internal/mcptest"
)

func newSession(t *testing.T, srv *mcptest.FakeServer, opts SessionOptions) *Session {
	t.Helper()
	tr := NewStreamableHTTPTransport(StreamableHTTPConfig{
		URL:          srv.BaseURL(),
		EndpointPath: DefaultEndpointPath,
		Timeout:      2 * time.Second,
	})
	if opts.ClientInfo.Name == "" {
		opts.ClientInfo = ClientInfo{Name: "mcpbridge-test", Version: "0.0.1"}
	}
	s := NewSession(tr, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readySession(t *testing.T, cfg mcptest.FakeServerConfig) (*Session, *mcptest.FakeServer) {
	t.Helper()
	srv := mcptest.StartFakeServer(t, cfg)
	s := newSession(t, srv, SessionOptions{})
	if _, err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, srv
}

func TestSession_Initialize(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.DefaultConfig())
	s := newSession(t, srv, SessionOptions{})

	if s.State() != StateUnconnected {
		t.Fatalf("initial state = %v", s.State())
	}

	info, err := s.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if info.Name != "fake-server" || info.Version != "1.0.0" {
		t.Errorf("server info = %+v", info)
	}
	if info.ProtocolVersion != DefaultProtocolVersion {
		t.Errorf("protocol version = %q", info.ProtocolVersion)
	}
	if s.State() != StateReady {
		t.Errorf("state = %v, want ready", s.State())
	}

	reqs := srv.Requests()
	if len(reqs) != 2 || reqs[0].Method != "initialize" || reqs[1].Method != "notifications/initialized" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}

	var params struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ClientInfo      ClientInfo     `json:"clientInfo"`
	}
	if err := json.Unmarshal(reqs[0].Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.ProtocolVersion != "2024-11-05" || params.ClientInfo.Name != "mcpbridge-test" {
		t.Errorf("initialize params = %+v", params)
	}
	if _, ok := params.Capabilities["roots"]; !ok {
		t.Errorf("capabilities missing roots: %v", params.Capabilities)
	}
	if got := string(reqs[0].ID); got != "1" {
		t.Errorf("first request id = %s, want 1", got)
	}
	if reqs[1].Header.Get("MCP-Protocol-Version") != "2024-11-05" {
		t.Errorf("protocol version header not sent after handshake")
	}
}

func TestSession_InitializeTwice(t *testing.T) {
	s, _ := readySession(t, mcptest.DefaultConfig())
	_, err := s.Initialize(context.Background())
	if !IsKind(err, KindUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestSession_InitializeServerError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.ErrorOnInitConfig(-32602, "Unsupported protocol version"))
	s := newSession(t, srv, SessionOptions{})

	_, err := s.Initialize(context.Background())
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindApplication || e.Code != -32602 {
		t.Fatalf("expected application error, got %v", err)
	}
	if s.State() != StateUnconnected {
		t.Errorf("state = %v, want unconnected", s.State())
	}
}

func TestSession_ConcurrentInitializeSendsOneHandshake(t *testing.T) {
	cfg := mcptest.DefaultConfig()
	cfg.Delays = map[string]time.Duration{"initialize": 200 * time.Millisecond}
	srv := mcptest.StartFakeServer(t, cfg)
	s := newSession(t, srv, SessionOptions{})

	const callers = 4
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Initialize(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsKind(err, KindUsage):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != callers-1 {
		t.Errorf("succeeded=%d rejected=%d", succeeded, rejected)
	}
	if n := srv.Count("initialize"); n != 1 {
		t.Errorf("initialize sent %d times, want 1", n)
	}
	if s.State() != StateReady {
		t.Errorf("state = %v, want ready", s.State())
	}
}

func TestSession_InitializeRetryAfterFailure(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.ErrorOnInitConfig(-32602, "Unsupported protocol version"))
	s := newSession(t, srv, SessionOptions{})

	for i := 0; i < 2; i++ {
		if _, err := s.Initialize(context.Background()); !IsKind(err, KindApplication) {
			t.Fatalf("attempt %d: expected application error, got %v", i+1, err)
		}
	}
	if n := srv.Count("initialize"); n != 2 {
		t.Errorf("initialize sent %d times, want 2", n)
	}
}

func TestSession_ReplyWithoutOutcomeIsProtocolError(t *testing.T) {
	for _, mode := range []string{"json", "sse"} {
		t.Run(mode, func(t *testing.T) {
			cfg := mcptest.DefaultConfig()
			cfg.Mode = mcptest.Mode(mode)
			cfg.OmitResultAndError = true
			srv := mcptest.StartFakeServer(t, cfg)
			s := newSession(t, srv, SessionOptions{})

			_, err := s.Initialize(context.Background())
			if !IsKind(err, KindProtocol) {
				t.Errorf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestSession_InitializedNotificationFailureNotFatal(t *testing.T) {
	cfg := mcptest.DefaultConfig()
	cfg.RejectNotifications = true
	s, _ := readySession(t, cfg)

	if s.State() != StateReady {
		t.Errorf("state = %v, want ready", s.State())
	}
}

func TestSession_CallBeforeInitializeMakesNoRequest(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.DefaultConfig())
	s := newSession(t, srv, SessionOptions{})

	res := s.CallTool(context.Background(), "create_node", map[string]any{"label": "Person"})
	if res.Success {
		t.Fatal("expected failure before initialize")
	}
	if res.Err.Kind != KindUsage || !errors.Is(res.Err, ErrNotInitialized) {
		t.Errorf("unexpected error: %v", res.Err)
	}

	if _, err := s.ListTools(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListTools before initialize: %v", err)
	}

	if n := len(srv.Requests()); n != 0 {
		t.Errorf("expected no network requests, got %d", n)
	}
}

func TestSession_ListTools(t *testing.T) {
	s, srv := readySession(t, mcptest.DefaultConfig())

	tools, err := s.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "create_node" || tools[1].Name != "find_nodes" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	schema := tools[0].SchemaMap()
	if schema["type"] != "object" {
		t.Errorf("schema = %v", schema)
	}

	var sent map[string]any
	for _, r := range srv.Requests() {
		if r.Method == "tools/list" && len(r.Params) != 0 {
			_ = json.Unmarshal(r.Params, &sent)
			t.Errorf("tools/list should carry no params, got %v", sent)
		}
	}

	// Second call is served from the session.
	if _, err := s.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools again: %v", err)
	}
	if srv.Count("tools/list") != 1 {
		t.Errorf("tools/list sent %d times", srv.Count("tools/list"))
	}
}

func TestSession_CallToolTextResult(t *testing.T) {
	for _, mode := range []string{"json", "sse"} {
		t.Run(mode, func(t *testing.T) {
			cfg := mcptest.TextResultConfig("find_nodes", "Found 3 nodes")
			cfg.Mode = mcptest.Mode(mode)
			s, srv := readySession(t, cfg)

			res := s.CallTool(context.Background(), "find_nodes", map[string]any{"label": "Person"})
			if !res.Success {
				t.Fatalf("expected success, got %v", res.Err)
			}
			if res.Shape != ShapeText || res.Payload() != "Found 3 nodes" {
				t.Errorf("payload = %#v (shape %v)", res.Payload(), res.Shape)
			}

			reqs := srv.Requests()
			last := reqs[len(reqs)-1]
			var params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			_ = json.Unmarshal(last.Params, &params)
			if params.Name != "find_nodes" || params.Arguments["label"] != "Person" {
				t.Errorf("tools/call params = %s", last.Params)
			}
		})
	}
}

func TestSession_CallToolApplicationError(t *testing.T) {
	s, _ := readySession(t, mcptest.ErrorOnToolCallConfig(-32602, "Invalid params"))

	res := s.CallTool(context.Background(), "create_node", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != KindApplication || res.Err.Code != -32602 || res.Err.Message != "Invalid params" {
		t.Errorf("unexpected error: %+v", res.Err)
	}
}

func TestSession_CallToolRawResult(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"empty content", `{"content":[],"meta":{"count":0}}`},
		{"no content", `{"nodes":[{"id":"n1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := readySession(t, mcptest.RawResultConfig("find_nodes", json.RawMessage(tt.result)))

			res := s.CallTool(context.Background(), "find_nodes", nil)
			if !res.Success || res.Shape != ShapeRaw {
				t.Fatalf("expected raw success, got %+v", res)
			}
			if string(res.Raw) != tt.result {
				t.Errorf("raw = %s, want %s", res.Raw, tt.result)
			}
			if _, ok := res.Payload().(map[string]any); !ok {
				t.Errorf("payload should be the result object, got %T", res.Payload())
			}
		})
	}
}

func TestSession_CallToolUnknownShapeFailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"image first", `{"content":[{"type":"image","data":"AAAA","mimeType":"image/png"}]}`},
		{"content not list", `{"content":"Found 3 nodes"}`},
		{"result not object", `"Found 3 nodes"`},
		{"null result", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := readySession(t, mcptest.RawResultConfig("find_nodes", json.RawMessage(tt.result)))

			res := s.CallTool(context.Background(), "find_nodes", nil)
			if res.Success {
				t.Fatalf("expected failure, got %+v", res)
			}
			if res.Err.Kind != KindProtocol {
				t.Errorf("kind = %v, want protocol", res.Err.Kind)
			}
		})
	}
}

func TestSession_CallToolIsError(t *testing.T) {
	cfg := mcptest.DefaultConfig()
	cfg.ToolHandler = func(string, json.RawMessage) ([]mcptest.ContentBlock, bool, error) {
		return []mcptest.ContentBlock{{Type: "text", Text: "label is required"}}, true, nil
	}
	s, _ := readySession(t, cfg)

	res := s.CallTool(context.Background(), "create_node", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != KindApplication || res.Err.Message != "label is required" {
		t.Errorf("unexpected error: %+v", res.Err)
	}
}

func TestSession_MismatchedIDIsProtocolError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.DefaultConfig())
	s := newSession(t, srv, SessionOptions{})
	if _, err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Swap in a server that answers every call with the wrong id.
	bad := mcptest.StartFakeServer(t, mcptest.MismatchedIDConfig())
	s.transport = NewStreamableHTTPTransport(StreamableHTTPConfig{URL: bad.URL()})

	core, logs := observer.New(zapcore.WarnLevel)
	s.logger = logging.FromZap(zap.New(core))

	res := s.CallTool(context.Background(), "test_tool", nil)
	if res.Success {
		t.Fatal("mismatched reply was accepted")
	}
	if res.Err.Kind != KindProtocol || !strings.Contains(res.Err.Message, "does not match") {
		t.Errorf("unexpected error: %+v", res.Err)
	}
	if logs.FilterMessage("mcp protocol error").Len() != 1 {
		t.Errorf("expected one protocol error log, got %v", logs.All())
	}
}

func TestSession_MalformedReply(t *testing.T) {
	for _, mode := range []string{"json", "sse"} {
		t.Run(mode, func(t *testing.T) {
			srv := mcptest.StartFakeServer(t, mcptest.FakeServerConfig{Malformed: true, Mode: mcptest.Mode(mode)})
			s := newSession(t, srv, SessionOptions{})

			_, err := s.Initialize(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			want := KindProtocol
			if mode == "sse" {
				want = KindTransport
			}
			if !IsKind(err, want) {
				t.Errorf("expected %v error, got %v", want, err)
			}
		})
	}
}

func TestSession_TimeoutLeavesSessionUsable(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.SlowToolCallConfig(500*time.Millisecond))
	tr := NewStreamableHTTPTransport(StreamableHTTPConfig{
		URL:     srv.URL(),
		Timeout: 100 * time.Millisecond,
	})
	s := NewSession(tr, SessionOptions{})
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	start := time.Now()
	res := s.CallTool(context.Background(), "echo", map[string]any{"x": 1})
	elapsed := time.Since(start)
	if res.Success || res.Err.Kind != KindTransport {
		t.Fatalf("expected transport failure, got %+v", res)
	}
	if elapsed > time.Second {
		t.Errorf("timed out call took %v", elapsed)
	}

	if s.State() != StateReady {
		t.Errorf("state = %v after timeout", s.State())
	}
	tools, err := s.ListTools(context.Background())
	if err != nil || len(tools) != 2 {
		t.Errorf("session unusable after timeout: %v %v", tools, err)
	}
}

func TestSession_SequentialCallsNeverReuseIDs(t *testing.T) {
	for _, strategy := range []IDStrategy{IDStrategyCounter, IDStrategyUUID} {
		t.Run(string(strategy), func(t *testing.T) {
			srv := mcptest.StartFakeServer(t, mcptest.EchoToolsConfig())
			s := newSession(t, srv, SessionOptions{IDStrategy: strategy})
			if _, err := s.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize: %v", err)
			}

			for i := 0; i < 3; i++ {
				if res := s.CallTool(context.Background(), "echo", nil); !res.Success {
					t.Fatalf("call %d: %v", i, res.Err)
				}
			}

			seen := make(map[string]bool)
			for _, r := range srv.Requests() {
				if len(r.ID) == 0 {
					continue
				}
				if seen[string(r.ID)] {
					t.Errorf("id %s reused", r.ID)
				}
				seen[string(r.ID)] = true
			}
			if len(seen) != 4 {
				t.Errorf("expected 4 distinct ids, got %d", len(seen))
			}
		})
	}
}

func TestSession_SSEWithInterleavedNotification(t *testing.T) {
	s, _ := readySession(t, mcptest.NotificationBeforeResponseConfig())

	res := s.CallTool(context.Background(), "test_tool", nil)
	if !res.Success || res.Text != "ok" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSession_Non2xxPlainBody(t *testing.T) {
	cfg := mcptest.DefaultConfig()
	cfg.StatusCodes = map[string]int{"tools/call": 503}
	cfg.PlainErrorBody = true
	s, _ := readySession(t, cfg)

	res := s.CallTool(context.Background(), "create_node", nil)
	if res.Success || res.Err.Kind != KindTransport || res.Err.StatusCode != 503 {
		t.Errorf("unexpected result: %+v", res.Err)
	}
}

func TestSession_SessionIDEchoed(t *testing.T) {
	cfg := mcptest.EchoToolsConfig()
	cfg.SessionID = "abc"
	s, srv := readySession(t, cfg)

	s.CallTool(context.Background(), "echo", nil)
	reqs := srv.Requests()
	if got := reqs[len(reqs)-1].Header.Get("Mcp-Session-Id"); got != "abc" {
		t.Errorf("session id header = %q", got)
	}
}

func TestSession_CloseRejectsCalls(t *testing.T) {
	s, _ := readySession(t, mcptest.EchoToolsConfig())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	res := s.CallTool(context.Background(), "echo", nil)
	if res.Success || res.Err.Kind != KindUsage {
		t.Errorf("expected usage error after close, got %+v", res)
	}
}
