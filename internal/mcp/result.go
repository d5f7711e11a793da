package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultShape identifies which of the known tools/call result layouts a
// successful reply used.
type ResultShape int

const (
	// ShapeNone is set on failed results.
	ShapeNone ResultShape = iota
	// ShapeText is a result whose content list starts with a text block.
	// The payload is that text.
	ShapeText
	// ShapeRaw is a result without content, or with an empty content list.
	// The payload is the result object, unchanged.
	ShapeRaw
)

func (s ResultShape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeRaw:
		return "raw"
	default:
		return "none"
	}
}

// ToolCallResult is the outcome of one tools/call. Exactly one of the
// success payload (Text or Raw, per Shape) and Err is meaningful.
type ToolCallResult struct {
	Name    string
	Success bool
	Shape   ResultShape
	Text    string
	Raw     json.RawMessage
	Err     *Error
}

// Payload returns the success value: a string for ShapeText, the decoded
// result object for ShapeRaw, nil for failures.
func (r *ToolCallResult) Payload() any {
	if !r.Success {
		return nil
	}
	if r.Shape == ShapeText {
		return r.Text
	}
	var v any
	if err := json.Unmarshal(r.Raw, &v); err != nil {
		return string(r.Raw)
	}
	return v
}

func failedResult(name string, err *Error) *ToolCallResult {
	return &ToolCallResult{Name: name, Err: err}
}

type toolResultEnvelope struct {
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"isError"`
}

type contentBlock struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// decodeToolResult classifies a tools/call result. Anything other than the
// content-wrapped and raw layouts is a protocol error.
func decodeToolResult(name string, raw json.RawMessage) *ToolCallResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return failedResult(name, protocolErrorf("tool result is not an object: %s", truncate(string(trimmed), 64)))
	}

	var env toolResultEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return failedResult(name, protocolErrorf("decode tool result: %v", err))
	}

	content := bytes.TrimSpace(env.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return rawResult(name, trimmed, env.IsError)
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(content, &blocks); err != nil {
		return failedResult(name, protocolErrorf("tool result content is not a list"))
	}
	if len(blocks) == 0 {
		return rawResult(name, trimmed, env.IsError)
	}

	var first contentBlock
	if err := json.Unmarshal(blocks[0], &first); err != nil {
		return failedResult(name, protocolErrorf("decode first content block: %v", err))
	}
	if first.Text == nil {
		return failedResult(name, protocolErrorf("first content block has no text (type %q)", first.Type))
	}

	if env.IsError {
		return failedResult(name, &Error{Kind: KindApplication, Message: *first.Text, Data: trimmed})
	}
	return &ToolCallResult{Name: name, Success: true, Shape: ShapeText, Text: *first.Text}
}

func rawResult(name string, raw json.RawMessage, isError bool) *ToolCallResult {
	if isError {
		return failedResult(name, &Error{Kind: KindApplication, Message: string(raw), Data: raw})
	}
	return &ToolCallResult{Name: name, Success: true, Shape: ShapeRaw, Raw: raw}
}

func protocolErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}
