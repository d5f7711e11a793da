package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	configDir  = ".config/mcpbridge"
	configFile = "config.json"
)

// Environment variables that override the file.
const (
	EnvServerURL = "MCP_SERVER_URL"
	EnvTimeout   = "MCP_TIMEOUT"
	EnvModel     = "GEMINI_MODEL"
	EnvLogLevel  = "LOG_LEVEL"
)

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDir, configFile), nil
}

// Load reads the configuration from the default path.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from a specific path.
// Returns a default config if the file doesn't exist.
func LoadFrom(path string) (*Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("config schema version %d is newer than supported version %d", cfg.SchemaVersion, SchemaVersion)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the configuration to the default path atomically.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to a specific path atomically.
// Uses a temp file + rename pattern for atomic writes.
func SaveTo(cfg *Config, path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	cfg.LastModified = time.Now()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("rename config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with MCP_SERVER_URL, MCP_TIMEOUT,
// GEMINI_MODEL and LOG_LEVEL when they are set.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		c.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		c.Server.Timeout = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		c.Model.Name = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the config and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case strings.TrimSpace(c.Server.URL) == "":
		errs = append(errs, errors.New("server.url is required"))
	default:
		u, err := url.Parse(c.Server.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.url %q must be an absolute http(s) URL", c.Server.URL))
		}
	}

	if c.Server.EndpointPath != "" && !strings.HasPrefix(c.Server.EndpointPath, "/") {
		errs = append(errs, fmt.Errorf("server.endpointPath %q must start with '/'", c.Server.EndpointPath))
	}

	if d, err := time.ParseDuration(c.Server.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("server.timeout %q: %w", c.Server.Timeout, err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout %q must be positive", c.Server.Timeout))
	}

	for name := range c.Server.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\r\n:") {
			errs = append(errs, fmt.Errorf("server.headers: invalid header name %q", name))
		}
	}

	switch c.Client.IDStrategy {
	case IDStrategyCounter, IDStrategyUUID:
	default:
		errs = append(errs, fmt.Errorf("client.idStrategy %q must be %q or %q", c.Client.IDStrategy, IDStrategyCounter, IDStrategyUUID))
	}

	if c.Model.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("model.maxIterations must be at least 1, got %d", c.Model.MaxIterations))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logLevel %q must be debug, info, warn or error", c.LogLevel))
	}

	switch c.CredentialStore {
	case "auto", "keyring", "file":
	default:
		errs = append(errs, fmt.Errorf("credentialStore %q must be auto, keyring or file", c.CredentialStore))
	}

	return errors.Join(errs...)
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
