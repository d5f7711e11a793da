package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thedeathtitan/mcpbridge/internal/bridge"
	"github.com/thedeathtitan/mcpbridge/internal/config"
	"github.com/thedeathtitan/mcpbridge/internal/events"
	"github.com/thedeathtitan/mcpbridge/internal/gemini"
	"github.com/thedeathtitan/mcpbridge/internal/logging"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
	"github.com/thedeathtitan/mcpbridge/internal/secrets"
	"github.com/thedeathtitan/mcpbridge/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with Gemini using the MCP server's tools",
	Long: `Chat with a Gemini model that can call the MCP server's tools.

With a prompt, runs a single turn: tool calls are reported on stderr and the
model's answer is printed on stdout. Without a prompt, starts the
interactive chat.

The Gemini API key is read from the environment variable named by
model.apiKeyEnvVar (GEMINI_API_KEY by default), then GOOGLE_API_KEY, then
the credential store (see 'mcpbridge auth set-key').

Examples:
  mcpbridge chat
  mcpbridge chat "How many Person nodes are there?"`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatSession is everything a chat needs once connected.
type chatSession struct {
	conn   *connection
	client *gemini.Client
	tools  []mcp.ToolDescriptor
	bus    *events.Bus
	logger *logging.Logger
	cfg    *config.Config
	convID string
}

func (s *chatSession) Close() {
	s.bus.Close()
	_ = s.client.Close()
	_ = s.conn.Close()
	_ = s.logger.Sync()
}

func (s *chatSession) newBridge() *bridge.Bridge {
	return bridge.New(s.conn.session, bridge.Options{
		MaxIterations:  s.cfg.Model.MaxIterations,
		ConversationID: s.convID,
		Publisher:      s.bus,
		Logger:         s.logger,
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	interactive := prompt == ""

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openChat(ctx, interactive)
	if err != nil {
		return err
	}
	defer s.Close()

	if interactive {
		return runInteractive(ctx, s)
	}
	return runOneShot(ctx, s, prompt)
}

func openChat(ctx context.Context, interactive bool) (*chatSession, error) {
	cfg, configPath, err := loadValidConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, interactive)
	if err != nil {
		return nil, err
	}

	store := optionalStore(cfg, logger)
	apiKey, source, err := secrets.ResolveAPIKey(cfg.Model.APIKeyEnvVar, store)
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, fmt.Errorf("no Gemini API key: set %s or run 'mcpbridge auth set-key'", cfg.Model.APIKeyEnvVar)
	}
	if err != nil {
		return nil, fmt.Errorf("read Gemini API key: %w", err)
	}
	logger.Debug("gemini api key resolved", "source", source)

	conn, err := connect(ctx, cfg, store, logger)
	if err != nil {
		return nil, err
	}

	tools, err := conn.session.ListTools(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}
	cacheTools(configPath, conn.transport.Endpoint(), tools, logger)

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Model.Name,
		SystemInstruction: cfg.Model.SystemInstruction,
	}, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &chatSession{
		conn:   conn,
		client: client,
		tools:  tools,
		bus:    events.NewBus(logger),
		logger: logger,
		cfg:    cfg,
		convID: uuid.NewString(),
	}, nil
}

func runOneShot(ctx context.Context, s *chatSession, prompt string) error {
	printer := newEventPrinter(os.Stderr, s.convID)
	unsubscribe := s.bus.Subscribe(printer.Handle)
	defer unsubscribe()

	answer, err := s.newBridge().Run(ctx, s.client.StartChat(s.tools), prompt)
	// Flush progress lines before the answer.
	s.bus.Close()
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runInteractive(ctx context.Context, s *chatSession) error {
	b := s.newBridge()

	var (
		mu   sync.Mutex
		conv = s.client.StartChat(s.tools)
	)
	run := func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		answer, err := b.Run(ctx, conv, prompt)
		if err != nil {
			// A failed turn can leave the history ending on a function call
			// the model never got a response for.
			s.logger.Debug("restarting chat after failed turn", "err", err)
			conv = s.client.StartChat(s.tools)
		}
		return answer, err
	}

	model := tui.NewModel(tui.Options{
		ServerName:     s.conn.transport.Endpoint(),
		ModelName:      s.cfg.Model.Name,
		ConversationID: s.convID,
		Tools:          eventTools(s.tools),
		Run:            run,
		Events:         s.bus,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
