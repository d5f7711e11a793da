package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/thedeathtitan/mcpbridge/internal/config"
	"github.com/thedeathtitan/mcpbridge/internal/events"
	"github.com/thedeathtitan/mcpbridge/internal/logging"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
	"github.com/thedeathtitan/mcpbridge/internal/secrets"
)

// debugLogPath is where --debug writes logs.
func debugLogPath() string {
	return filepath.Join(os.TempDir(), "mcpbridge-debug.log")
}

// resolveConfigPath returns the --config path or the default location.
func resolveConfigPath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.ConfigPath()
}

// loadConfig reads the config file, then applies environment overrides and
// finally command-line flags. It does not validate.
func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	if flagServer != "" {
		cfg.Server.URL = flagServer
	}
	if flagTimeout > 0 {
		cfg.Server.Timeout = flagTimeout.String()
	}
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, path, nil
}

// loadValidConfig is loadConfig plus Validate.
func loadValidConfig() (*config.Config, string, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, path, nil
}

// newLogger picks the log sink. Interactive commands never log to the
// terminal; --debug always logs to a file.
func newLogger(cfg *config.Config, interactive bool) (*logging.Logger, error) {
	if flagDebug {
		logger, err := logging.NewFile("debug", debugLogPath())
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		return logger, nil
	}
	if interactive {
		return logging.Nop(), nil
	}
	return logging.New(cfg.LogLevel), nil
}

// openStore opens the configured secret store.
func openStore(cfg *config.Config) (secrets.Store, error) {
	return secrets.NewStore(secrets.Mode(cfg.CredentialStore))
}

// connection is an initialized MCP session and its transport.
type connection struct {
	transport *mcp.StreamableHTTPTransport
	session   *mcp.Session
	server    *mcp.ServerInfo
}

func (c *connection) Close() error {
	return c.session.Close()
}

// newTransport builds the HTTP transport from config. The bearer token comes
// from server.bearerTokenEnvVar when set, otherwise from the secret store.
func newTransport(cfg *config.Config, store secrets.Store, logger *logging.Logger) (*mcp.StreamableHTTPTransport, error) {
	token, err := mcp.ValidateBearerTokenEnvVar(cfg.Server.BearerTokenEnvVar)
	if err != nil {
		return nil, err
	}

	tcfg := mcp.StreamableHTTPConfig{
		URL:          cfg.Server.URL,
		EndpointPath: cfg.Server.EndpointPath,
		BearerToken:  token,
		HTTPHeaders:  cfg.Server.Headers,
		Timeout:      cfg.Server.TimeoutDuration(),
		Logger:       logger,
	}
	if token == "" && store != nil {
		endpoint := mcp.ResolveEndpoint(cfg.Server.URL, cfg.Server.EndpointPath)
		tcfg.BearerTokenProvider = storedToken(store, secrets.BearerTokenName(endpoint))
	}
	return mcp.NewStreamableHTTPTransport(tcfg), nil
}

// storedToken reads a bearer token from the store once. A missing entry
// means no Authorization header.
func storedToken(store secrets.Store, name string) func(context.Context) (string, error) {
	var (
		once  sync.Once
		token string
		err   error
	)
	return func(context.Context) (string, error) {
		once.Do(func() {
			token, err = store.Get(name)
			if errors.Is(err, secrets.ErrNotFound) {
				token, err = "", nil
			}
		})
		return token, err
	}
}

// connect opens a session and performs the MCP handshake.
func connect(ctx context.Context, cfg *config.Config, store secrets.Store, logger *logging.Logger) (*connection, error) {
	transport, err := newTransport(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	session := mcp.NewSession(transport, mcp.SessionOptions{
		ClientInfo: mcp.ClientInfo{
			Name:    cfg.Client.Name,
			Version: cfg.Client.Version,
		},
		ProtocolVersion: cfg.Client.ProtocolVersion,
		IDStrategy:      mcp.IDStrategy(cfg.Client.IDStrategy),
		Logger:          logger,
	})

	info, err := session.Initialize(ctx)
	if err != nil {
		_ = session.Close()
		if mcp.IsKind(err, mcp.KindTransport) {
			return nil, fmt.Errorf("connect to %s (is the server running and the URL right?): %w", transport.Endpoint(), err)
		}
		return nil, fmt.Errorf("connect to %s: %w", transport.Endpoint(), err)
	}

	return &connection{transport: transport, session: session, server: info}, nil
}

// optionalStore opens the secret store, logging and ignoring failures.
// Only commands that need a secret should fail when the store is unavailable.
func optionalStore(cfg *config.Config, logger *logging.Logger) secrets.Store {
	store, err := openStore(cfg)
	if err != nil {
		logger.Debug("secret store unavailable", "err", err)
		return nil
	}
	return store
}

// cacheTools records the tool list and its token estimates next to the config.
func cacheTools(configPath, endpoint string, tools []mcp.ToolDescriptor, logger *logging.Logger) *config.ToolCache {
	cache, err := config.NewToolCache(configPath)
	if err != nil {
		logger.Debug("tool cache unavailable", "err", err)
		return nil
	}

	// A server without tools leaves nothing to estimate.
	if len(tools) == 0 {
		if err := cache.Delete(endpoint); err != nil {
			logger.Warn("failed to update tool cache", "err", err)
		}
		return cache
	}

	inputs := make([]config.CachedToolInput, len(tools))
	for i, t := range tools {
		inputs[i] = config.CachedToolInput{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	if err := cache.Update(endpoint, inputs); err != nil {
		logger.Warn("failed to update tool cache", "err", err)
	}
	return cache
}

// eventTools converts tool descriptors for event consumers.
func eventTools(tools []mcp.ToolDescriptor) []events.McpTool {
	out := make([]events.McpTool, len(tools))
	for i, t := range tools {
		out[i] = events.McpTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return out
}
