package mcptest

import (
	"encoding/json"
	"time"
)

// Common test configurations for fake MCP servers.

// DefaultConfig returns a minimal working fake server configuration.
func DefaultConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{
			{
				Name:        "create_node",
				Description: "Create a graph node",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string", "description": "Node label"},
						"name":  map[string]any{"type": "string"},
					},
					"required": []string{"label"},
				},
			},
			{Name: "find_nodes", Description: "Find nodes by label"},
		},
	}
}

// SSEConfig returns DefaultConfig replying over an event stream.
func SSEConfig() FakeServerConfig {
	cfg := DefaultConfig()
	cfg.Mode = "sse"
	return cfg
}

// EmptyToolsConfig returns a config with no tools.
func EmptyToolsConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{},
	}
}

// TextResultConfig returns a config whose tool replies with a single text block.
func TextResultConfig(tool, text string) FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: tool}},
		ToolHandler: func(string, json.RawMessage) ([]ContentBlock, bool, error) {
			return []ContentBlock{{Type: "text", Text: text}}, false, nil
		},
	}
}

// RawResultConfig returns a config whose tool replies with result verbatim.
func RawResultConfig(tool string, result json.RawMessage) FakeServerConfig {
	return FakeServerConfig{
		Tools:       []Tool{{Name: tool}},
		ToolResults: map[string]json.RawMessage{tool: result},
	}
}

// SlowToolCallConfig returns a config that delays the tools/call response.
func SlowToolCallConfig(delay time.Duration) FakeServerConfig {
	cfg := EchoToolsConfig()
	cfg.Delays = map[string]time.Duration{
		"tools/call": delay,
	}
	return cfg
}

// ErrorOnInitConfig returns a config that returns an error on initialize.
func ErrorOnInitConfig(code int, message string) FakeServerConfig {
	return FakeServerConfig{
		Errors: map[string]JSONRPCError{
			"initialize": {Code: code, Message: message},
		},
	}
}

// ErrorOnToolCallConfig returns a config that answers tools/call with an error.
func ErrorOnToolCallConfig(code int, message string) FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: "create_node"}},
		Errors: map[string]JSONRPCError{
			"tools/call": {Code: code, Message: message},
		},
	}
}

// NotificationBeforeResponseConfig returns an SSE config that sends a
// server notification before each response.
func NotificationBeforeResponseConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools:                          []Tool{{Name: "test_tool"}},
		Mode:                           "sse",
		SendNotificationBeforeResponse: true,
		SendCommentsInStream:           true,
	}
}

// MismatchedIDConfig returns a config that answers with the wrong id.
func MismatchedIDConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools:            []Tool{{Name: "test_tool"}},
		SendMismatchedID: true,
	}
}

// MalformedResponseConfig returns a config that sends invalid JSON.
func MalformedResponseConfig() FakeServerConfig {
	return FakeServerConfig{
		Malformed: true,
	}
}

// EchoToolsConfig returns a config that echoes tool calls back as text.
// Useful for testing tool call routing.
func EchoToolsConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{
			{Name: "echo", Description: "Echo the input back"},
			{Name: "greet", Description: "Return a greeting"},
		},
		EchoToolCalls: true,
	}
}
