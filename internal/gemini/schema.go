package gemini

import (
	"regexp"
	"strconv"

	"github.com/google/generative-ai-go/genai"

	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

// maxNameLen is the longest function name Gemini accepts.
const maxNameLen = 64

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FunctionDeclarations converts MCP tool descriptors into Gemini function
// declarations. The returned map takes each declared name back to the MCP
// tool name, since Gemini restricts the characters a name may use.
func FunctionDeclarations(tools []mcp.ToolDescriptor) ([]*genai.FunctionDeclaration, map[string]string) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	names := make(map[string]string, len(tools))

	for _, tool := range tools {
		declared := declaredName(tool.Name, names)
		names[declared] = tool.Name

		decl := &genai.FunctionDeclaration{
			Name:        declared,
			Description: tool.Description,
		}
		if schema := tool.SchemaMap(); schema != nil {
			decl.Parameters = convertSchema(schema)
		} else {
			decl.Parameters = &genai.Schema{Type: genai.TypeObject}
		}
		decls = append(decls, decl)
	}
	return decls, names
}

// declaredName makes name acceptable to Gemini and unique within taken.
func declaredName(name string, taken map[string]string) string {
	clean := invalidNameChars.ReplaceAllString(name, "_")
	if clean == "" {
		clean = "tool"
	}
	if len(clean) > maxNameLen {
		clean = clean[:maxNameLen]
	}
	candidate := clean
	for i := 2; ; i++ {
		if _, dup := taken[candidate]; !dup {
			return candidate
		}
		suffix := "_" + strconv.Itoa(i)
		base := clean
		if len(base)+len(suffix) > maxNameLen {
			base = base[:maxNameLen-len(suffix)]
		}
		candidate = base + suffix
	}
}

// convertSchema maps a JSON Schema object onto genai.Schema. Unknown or
// missing types become objects.
func convertSchema(schema any) *genai.Schema {
	schemaMap, ok := schema.(map[string]any)
	if !ok {
		return &genai.Schema{Type: genai.TypeObject}
	}

	result := &genai.Schema{}

	switch typeOf(schemaMap["type"]) {
	case "string":
		result.Type = genai.TypeString
	case "number":
		result.Type = genai.TypeNumber
	case "integer":
		result.Type = genai.TypeInteger
	case "boolean":
		result.Type = genai.TypeBoolean
	case "array":
		result.Type = genai.TypeArray
	default:
		result.Type = genai.TypeObject
	}

	if desc, ok := schemaMap["description"].(string); ok {
		result.Description = desc
	}
	if format, ok := schemaMap["format"].(string); ok && result.Type == genai.TypeString {
		// Gemini only understands enum and date-time for strings.
		if format == "enum" || format == "date-time" {
			result.Format = format
		}
	}
	result.Enum = stringList(schemaMap["enum"])
	if len(result.Enum) > 0 && result.Type == genai.TypeString {
		result.Format = "enum"
	}
	result.Required = stringList(schemaMap["required"])

	if properties, ok := schemaMap["properties"].(map[string]any); ok && len(properties) > 0 {
		result.Properties = make(map[string]*genai.Schema, len(properties))
		for name, prop := range properties {
			result.Properties[name] = convertSchema(prop)
		}
	}

	if result.Type == genai.TypeArray {
		if items, ok := schemaMap["items"]; ok {
			result.Items = convertSchema(items)
		} else {
			result.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	return result
}

// typeOf reads a JSON Schema type, taking the first non-null entry of a
// type list such as ["string", "null"].
func typeOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	case []string:
		for _, s := range t {
			if s != "null" {
				return s
			}
		}
	}
	return ""
}

func stringList(v any) []string {
	var out []string
	switch list := v.(type) {
	case []any:
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, list...)
	}
	return out
}
