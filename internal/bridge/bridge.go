// Package bridge connects a model's function-call intents to an MCP session
// and feeds the tool results back into the conversation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thedeathtitan/mcpbridge/internal/events"
	"github.com/thedeathtitan/mcpbridge/internal/logging"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

// DefaultMaxIterations caps model turns per Run.
const DefaultMaxIterations = 10

// ErrMaxIterations is returned by Run when the model keeps requesting tools
// past the iteration cap.
var ErrMaxIterations = errors.New("bridge: maximum iterations reached")

// ToolCallIntent is the model's request to invoke a named tool.
type ToolCallIntent struct {
	Name      string
	Arguments map[string]any
}

// Turn is one model output. A turn with no Calls is a plain text reply.
type Turn struct {
	Text  string
	Calls []ToolCallIntent
}

// IsText reports whether the turn is a plain text reply.
func (t Turn) IsText() bool { return len(t.Calls) == 0 }

// FunctionResult binds a tool name to its outcome, in the form handed back to
// the model.
type FunctionResult struct {
	Name     string
	Response map[string]any
	Failed   bool
}

// Input is the next value fed to the model: user text, or the results of the
// tool calls the previous turn requested.
type Input struct {
	Text    string
	Results []FunctionResult
}

// ToolCaller invokes tools. *mcp.Session implements it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) *mcp.ToolCallResult
}

// Conversation is the external model. Send delivers one input and returns the
// model's next turn.
type Conversation interface {
	Send(ctx context.Context, in Input) (Turn, error)
}

// Publisher receives bridge outcomes. *events.Bus implements it.
type Publisher interface {
	Publish(events.Event)
}

// Options configures a Bridge.
type Options struct {
	MaxIterations  int // DefaultMaxIterations when zero
	ConversationID string
	Publisher      Publisher
	Logger         *logging.Logger
}

// Bridge resolves tool-call intents one at a time, in order, with no retries.
type Bridge struct {
	tools          ToolCaller
	maxIterations  int
	conversationID string
	publisher      Publisher
	logger         *logging.Logger
}

// New creates a Bridge that calls tools through tools.
func New(tools ToolCaller, opts Options) *Bridge {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Bridge{
		tools:          tools,
		maxIterations:  opts.MaxIterations,
		conversationID: opts.ConversationID,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
	}
}

// HandleTurn turns a model output into the next model input. A text turn is
// passed through unchanged and done is true. Otherwise every requested call
// is executed sequentially, each completing before the next is sent, and the
// results come back together in one Input.
//
// The model sees none of a turn's results until the last call finishes, so
// it cannot react to one call before the next runs. A model that needs that
// feedback must request one call per turn.
func (b *Bridge) HandleTurn(ctx context.Context, turn Turn) (next Input, done bool) {
	if turn.IsText() {
		return Input{Text: turn.Text}, true
	}
	if turn.Text != "" {
		b.logger.Debug("model text alongside tool calls", "text", turn.Text)
	}

	results := make([]FunctionResult, 0, len(turn.Calls))
	for _, intent := range turn.Calls {
		results = append(results, b.resolve(ctx, intent))
	}
	return Input{Results: results}, false
}

// resolve performs one tool call. Failures still produce a result so the
// model can explain them.
func (b *Bridge) resolve(ctx context.Context, intent ToolCallIntent) FunctionResult {
	b.publish(events.NewToolCallStartedEvent(b.conversationID, intent.Name, intent.Arguments))
	b.logger.Info("calling tool", "tool", intent.Name)

	start := time.Now()
	res := b.tools.CallTool(ctx, intent.Name, intent.Arguments)
	elapsed := time.Since(start)

	if res == nil {
		res = &mcp.ToolCallResult{Name: intent.Name}
	}
	if !res.Success && res.Err == nil {
		res.Err = &mcp.Error{Kind: mcp.KindProtocol, Message: "tool call produced no result"}
	}

	fr := ToFunctionResult(intent.Name, res)
	if res.Success {
		b.publish(events.NewToolCallFinishedEvent(b.conversationID, intent.Name, true, res.Payload(), nil, elapsed))
	} else {
		b.logger.Info("tool call failed", "tool", intent.Name, "kind", res.Err.Kind.String(), "err", res.Err.Message)
		b.publish(events.NewToolCallFinishedEvent(b.conversationID, intent.Name, false, nil, res.Err, elapsed))
	}
	return fr
}

// ToFunctionResult packages a tool outcome for the model: {"result": payload}
// on success, {"error": {kind, code, message}} on failure.
func ToFunctionResult(name string, res *mcp.ToolCallResult) FunctionResult {
	if res.Success {
		return FunctionResult{
			Name:     name,
			Response: map[string]any{"result": res.Payload()},
		}
	}

	desc := map[string]any{"message": "tool call failed"}
	if res.Err != nil {
		desc = map[string]any{
			"kind":    res.Err.Kind.String(),
			"message": res.Err.Message,
		}
		if res.Err.Code != 0 {
			desc["code"] = res.Err.Code
		}
		if res.Err.StatusCode != 0 {
			desc["status"] = res.Err.StatusCode
		}
	}
	return FunctionResult{
		Name:     name,
		Response: map[string]any{"error": desc},
		Failed:   true,
	}
}

// Run drives model -> tool -> model until the model answers in text or the
// iteration cap is reached. It returns the model's final text.
func (b *Bridge) Run(ctx context.Context, conv Conversation, prompt string) (string, error) {
	b.publish(events.NewTurnStartedEvent(b.conversationID, prompt))

	input := Input{Text: prompt}
	for i := 0; i < b.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		turn, err := conv.Send(ctx, input)
		if err != nil {
			err = fmt.Errorf("model turn %d: %w", i+1, err)
			b.publish(events.NewErrorEvent(b.conversationID, err, "model request failed"))
			return "", err
		}

		next, done := b.HandleTurn(ctx, turn)
		if done {
			b.publish(events.NewModelRepliedEvent(b.conversationID, next.Text))
			return next.Text, nil
		}
		input = next
	}

	b.logger.Warn("model exceeded iteration cap", "max", b.maxIterations)
	b.publish(events.NewErrorEvent(b.conversationID, ErrMaxIterations, "too many tool-call rounds"))
	return "", ErrMaxIterations
}

func (b *Bridge) publish(e events.Event) {
	if b.publisher != nil {
		b.publisher.Publish(e)
	}
}
