// Package gemini adapts a Gemini chat session to the bridge's Conversation
// interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thedeathtitan/mcpbridge/internal/bridge"
	"github.com/thedeathtitan/mcpbridge/internal/logging"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

var (
	// ErrEmptyInput is returned when Send is given neither text nor results.
	ErrEmptyInput = errors.New("gemini: empty input")
	// ErrNoContent is returned when the model answers with nothing usable.
	ErrNoContent = errors.New("gemini: response has no content")
)

// chatSession is the part of *genai.ChatSession used here.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Chat is one multi-turn Gemini conversation. It implements
// bridge.Conversation. Not safe for concurrent use.
type Chat struct {
	session chatSession
	names   map[string]string // declared function name -> MCP tool name
	decl    map[string]string // MCP tool name -> declared function name
	logger  *logging.Logger
}

var _ bridge.Conversation = (*Chat)(nil)

func newChat(session chatSession, names map[string]string, logger *logging.Logger) *Chat {
	if logger == nil {
		logger = logging.Nop()
	}
	decl := make(map[string]string, len(names))
	for declared, tool := range names {
		decl[tool] = declared
	}
	return &Chat{session: session, names: names, decl: decl, logger: logger}
}

// Send delivers in to the model and returns its next turn.
func (c *Chat) Send(ctx context.Context, in bridge.Input) (bridge.Turn, error) {
	parts, err := c.toParts(in)
	if err != nil {
		return bridge.Turn{}, err
	}

	resp, err := c.session.SendMessage(ctx, parts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return bridge.Turn{}, ctxErr
		}
		return bridge.Turn{}, fmt.Errorf("gemini API error: %w", err)
	}
	return c.fromResponse(resp)
}

func (c *Chat) toParts(in bridge.Input) ([]genai.Part, error) {
	if len(in.Results) > 0 {
		// Gemini expects every response of a turn together.
		parts := make([]genai.Part, 0, len(in.Results))
		for _, r := range in.Results {
			name := r.Name
			if declared, ok := c.decl[name]; ok {
				name = declared
			}
			parts = append(parts, genai.FunctionResponse{Name: name, Response: r.Response})
		}
		return parts, nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInput
	}
	return []genai.Part{genai.Text(in.Text)}, nil
}

func (c *Chat) fromResponse(resp *genai.GenerateContentResponse) (bridge.Turn, error) {
	if resp == nil {
		return bridge.Turn{}, ErrNoContent
	}

	var turn bridge.Turn
	var text strings.Builder
	found := false
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			switch p := part.(type) {
			case genai.FunctionCall:
				found = true
				args := p.Args
				if args == nil {
					args = make(map[string]any)
				}
				name := p.Name
				if tool, ok := c.names[name]; ok {
					name = tool
				}
				turn.Calls = append(turn.Calls, bridge.ToolCallIntent{Name: name, Arguments: args})
			case genai.Text:
				found = true
				text.WriteString(string(p))
			default:
				c.logger.Debug("ignoring response part", "type", fmt.Sprintf("%T", part))
			}
		}
		// One candidate is requested; stop at the first with content.
		if found {
			break
		}
	}
	if !found {
		return bridge.Turn{}, ErrNoContent
	}
	turn.Text = text.String()
	return turn, nil
}

// Config configures a Client.
type Config struct {
	APIKey            string
	Model             string // DefaultModel when empty
	SystemInstruction string
}

// Client owns the Gemini API connection.
type Client struct {
	client *genai.Client
	cfg    Config
	logger *logging.Logger
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, cfg Config, logger *logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = logging.Nop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
	}
	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// StartChat opens a conversation that may call the given tools.
func (c *Client) StartChat(tools []mcp.ToolDescriptor) *Chat {
	model := c.client.GenerativeModel(c.cfg.Model)
	if c.cfg.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(c.cfg.SystemInstruction)},
		}
	}

	decls, names := FunctionDeclarations(tools)
	if len(decls) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	c.logger.Debug("gemini chat started", "model", c.cfg.Model, "tools", len(decls))

	return newChat(model.StartChat(), names, c.logger)
}

// Close releases the API connection.
func (c *Client) Close() error {
	return c.client.Close()
}
