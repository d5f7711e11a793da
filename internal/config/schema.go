// Package config provides configuration schema and persistence for mcpbridge.
package config

import (
	"time"
)

// SchemaVersion is the current config schema version.
const SchemaVersion = 1

// Defaults applied by NewConfig and backfilled by LoadFrom.
const (
	DefaultEndpointPath    = "/mcp"
	DefaultTimeout         = "30s"
	DefaultClientName      = "mcpbridge"
	DefaultClientVersion   = "0.1.0"
	DefaultProtocolVersion = "2024-11-05"
	DefaultIDStrategy      = IDStrategyCounter
	DefaultModel           = "gemini-2.5-flash"
	DefaultAPIKeyEnvVar    = "GEMINI_API_KEY"
	DefaultMaxIterations   = 10
	DefaultLogLevel        = "warn"
	DefaultCredentialStore = "auto"
)

// ID strategies accepted in client.idStrategy.
const (
	IDStrategyCounter = "counter"
	IDStrategyUUID    = "uuid"
)

// Config is the root configuration structure.
type Config struct {
	SchemaVersion int          `json:"schemaVersion"`
	Server        ServerConfig `json:"server"`
	Client        ClientConfig `json:"client"`
	Model         ModelConfig  `json:"model"`
	LogLevel      string       `json:"logLevel,omitempty"`

	// CredentialStore selects where API keys and tokens live:
	// "auto", "keyring" or "file".
	CredentialStore string `json:"credentialStore,omitempty"`

	LastModified time.Time `json:"lastModified,omitempty"`
}

// ServerConfig describes the remote MCP server.
type ServerConfig struct {
	// URL is the server base URL, with or without the endpoint path.
	URL          string `json:"url"`
	EndpointPath string `json:"endpointPath,omitempty"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers,omitempty"`

	// BearerTokenEnvVar names an environment variable holding a bearer token.
	BearerTokenEnvVar string `json:"bearerTokenEnvVar,omitempty"`

	// Timeout bounds one request/response exchange, as a Go duration string.
	Timeout string `json:"timeout,omitempty"`
}

// ClientConfig is what the client advertises during initialize.
type ClientConfig struct {
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	ProtocolVersion string `json:"protocolVersion,omitempty"`
	IDStrategy      string `json:"idStrategy,omitempty"` // "counter" or "uuid"
}

// ModelConfig selects the LLM and its limits.
type ModelConfig struct {
	Name              string `json:"name,omitempty"`
	APIKeyEnvVar      string `json:"apiKeyEnvVar,omitempty"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
	MaxIterations     int    `json:"maxIterations,omitempty"`
}

// NewConfig creates a config with every default filled in.
func NewConfig() *Config {
	cfg := &Config{SchemaVersion: SchemaVersion}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero fields. Older or hand-written files may omit them.
func (c *Config) applyDefaults() {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = SchemaVersion
	}
	if c.Server.EndpointPath == "" {
		c.Server.EndpointPath = DefaultEndpointPath
	}
	if c.Server.Timeout == "" {
		c.Server.Timeout = DefaultTimeout
	}
	if c.Client.Name == "" {
		c.Client.Name = DefaultClientName
	}
	if c.Client.Version == "" {
		c.Client.Version = DefaultClientVersion
	}
	if c.Client.ProtocolVersion == "" {
		c.Client.ProtocolVersion = DefaultProtocolVersion
	}
	if c.Client.IDStrategy == "" {
		c.Client.IDStrategy = DefaultIDStrategy
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModel
	}
	if c.Model.APIKeyEnvVar == "" {
		c.Model.APIKeyEnvVar = DefaultAPIKeyEnvVar
	}
	if c.Model.MaxIterations == 0 {
		c.Model.MaxIterations = DefaultMaxIterations
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.CredentialStore == "" {
		c.CredentialStore = DefaultCredentialStore
	}
}

// TimeoutDuration parses Server.Timeout. Callers should Validate first;
// an unparseable value yields the default.
func (s ServerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}
