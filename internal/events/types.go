// Package events carries Tool-Call Bridge outcomes to presentation consumers.
package events

import (
	"encoding/json"
	"time"
)

// McpTool represents a tool exposed by the MCP server.
type McpTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// EventType identifies the kind of event.
type EventType int

const (
	EventTurnStarted EventType = iota
	EventToolCallStarted
	EventToolCallFinished
	EventModelReplied
	EventToolsUpdated
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventTurnStarted:
		return "turn_started"
	case EventToolCallStarted:
		return "tool_call_started"
	case EventToolCallFinished:
		return "tool_call_finished"
	case EventModelReplied:
		return "model_replied"
	case EventToolsUpdated:
		return "tools_updated"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	ConversationID() string
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	conversationID string
	timestamp      time.Time
}

func (e baseEvent) ConversationID() string { return e.conversationID }
func (e baseEvent) Timestamp() time.Time   { return e.timestamp }

func newBase(conversationID string) baseEvent {
	return baseEvent{conversationID: conversationID, timestamp: time.Now()}
}

// TurnStartedEvent is emitted when user input is sent to the model.
type TurnStartedEvent struct {
	baseEvent
	Prompt string
}

func (e TurnStartedEvent) Type() EventType { return EventTurnStarted }

// NewTurnStartedEvent creates a new turn started event.
func NewTurnStartedEvent(conversationID, prompt string) TurnStartedEvent {
	return TurnStartedEvent{baseEvent: newBase(conversationID), Prompt: prompt}
}

// ToolCallStartedEvent is emitted before a tool call is sent to the server.
type ToolCallStartedEvent struct {
	baseEvent
	Name      string
	Arguments map[string]any
}

func (e ToolCallStartedEvent) Type() EventType { return EventToolCallStarted }

// NewToolCallStartedEvent creates a new tool call started event.
func NewToolCallStartedEvent(conversationID, name string, args map[string]any) ToolCallStartedEvent {
	return ToolCallStartedEvent{baseEvent: newBase(conversationID), Name: name, Arguments: args}
}

// ToolCallFinishedEvent is emitted once a tool call has resolved, either way.
type ToolCallFinishedEvent struct {
	baseEvent
	Name     string
	Success  bool
	Payload  any   // success payload
	Err      error // failure description
	Duration time.Duration
}

func (e ToolCallFinishedEvent) Type() EventType { return EventToolCallFinished }

// NewToolCallFinishedEvent creates a new tool call finished event.
func NewToolCallFinishedEvent(conversationID, name string, success bool, payload any, err error, d time.Duration) ToolCallFinishedEvent {
	return ToolCallFinishedEvent{
		baseEvent: newBase(conversationID),
		Name:      name,
		Success:   success,
		Payload:   payload,
		Err:       err,
		Duration:  d,
	}
}

// ModelRepliedEvent is emitted for the model's final text of a turn.
type ModelRepliedEvent struct {
	baseEvent
	Text string
}

func (e ModelRepliedEvent) Type() EventType { return EventModelReplied }

// NewModelRepliedEvent creates a new model replied event.
func NewModelRepliedEvent(conversationID, text string) ModelRepliedEvent {
	return ModelRepliedEvent{baseEvent: newBase(conversationID), Text: text}
}

// ToolsUpdatedEvent is emitted when tools are discovered.
type ToolsUpdatedEvent struct {
	baseEvent
	Tools []McpTool
}

func (e ToolsUpdatedEvent) Type() EventType { return EventToolsUpdated }

// NewToolsUpdatedEvent creates a new tools updated event.
func NewToolsUpdatedEvent(conversationID string, tools []McpTool) ToolsUpdatedEvent {
	return ToolsUpdatedEvent{baseEvent: newBase(conversationID), Tools: tools}
}

// ErrorEvent is emitted when a turn fails outside a tool call.
type ErrorEvent struct {
	baseEvent
	Err     error
	Message string
}

func (e ErrorEvent) Type() EventType { return EventError }

// NewErrorEvent creates a new error event.
func NewErrorEvent(conversationID string, err error, message string) ErrorEvent {
	return ErrorEvent{baseEvent: newBase(conversationID), Err: err, Message: message}
}
