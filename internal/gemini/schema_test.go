package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

type stubTools struct{}

func (stubTools) CallTool(_ context.Context, name string, _ map[string]any) *mcp.ToolCallResult {
	return &mcp.ToolCallResult{Name: name, Success: true, Shape: mcp.ShapeText, Text: "Found 3 nodes"}
}

func TestFunctionDeclarations(t *testing.T) {
	tools := []mcp.ToolDescriptor{
		{
			Name:        "create_node",
			Description: "Create a graph node",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"label": {"type": "string", "description": "Node label", "enum": ["Person", "City"]},
					"weight": {"type": "integer"},
					"score": {"type": ["number", "null"]},
					"tags": {"type": "array", "items": {"type": "string"}},
					"props": {"type": "object", "properties": {"age": {"type": "number"}}}
				},
				"required": ["label"]
			}`),
		},
		{Name: "ping"},
	}

	decls, names := FunctionDeclarations(tools)

	require.Len(t, decls, 2)
	assert.Equal(t, map[string]string{"create_node": "create_node", "ping": "ping"}, names)

	params := decls[0].Parameters
	assert.Equal(t, "Create a graph node", decls[0].Description)
	assert.Equal(t, genai.TypeObject, params.Type)
	assert.Equal(t, []string{"label"}, params.Required)

	label := params.Properties["label"]
	assert.Equal(t, genai.TypeString, label.Type)
	assert.Equal(t, "Node label", label.Description)
	assert.Equal(t, []string{"Person", "City"}, label.Enum)
	assert.Equal(t, "enum", label.Format)

	assert.Equal(t, genai.TypeInteger, params.Properties["weight"].Type)
	assert.Equal(t, genai.TypeNumber, params.Properties["score"].Type)
	assert.Equal(t, genai.TypeArray, params.Properties["tags"].Type)
	assert.Equal(t, genai.TypeString, params.Properties["tags"].Items.Type)
	assert.Equal(t, genai.TypeNumber, params.Properties["props"].Properties["age"].Type)

	assert.Equal(t, &genai.Schema{Type: genai.TypeObject}, decls[1].Parameters)
}

func TestFunctionDeclarations_SanitizesNames(t *testing.T) {
	tools := []mcp.ToolDescriptor{
		{Name: "graph.create node"},
		{Name: "graph_create_node"},
		{Name: strings.Repeat("x", 80)},
	}

	decls, names := FunctionDeclarations(tools)

	assert.Equal(t, "graph_create_node", decls[0].Name)
	assert.Equal(t, "graph_create_node_2", decls[1].Name)
	assert.Len(t, decls[2].Name, maxNameLen)
	assert.Equal(t, "graph.create node", names["graph_create_node"])
	assert.Equal(t, "graph_create_node", names["graph_create_node_2"])
}

func TestConvertSchema_NonObject(t *testing.T) {
	assert.Equal(t, &genai.Schema{Type: genai.TypeObject}, convertSchema(nil))
	assert.Equal(t, &genai.Schema{Type: genai.TypeObject}, convertSchema("string"))

	arr := convertSchema(map[string]any{"type": "array"})
	assert.Equal(t, genai.TypeString, arr.Items.Type)
}
