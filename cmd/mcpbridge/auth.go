package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/thedeathtitan/mcpbridge/internal/config"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
	"github.com/thedeathtitan/mcpbridge/internal/secrets"
)

var authStdin bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials",
	Long: `Manage the Gemini API key and MCP bearer tokens kept in the credential store.

The store is the system keychain, falling back to
~/.config/mcpbridge/.secrets.json (see the credentialStore config field).`,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the Gemini API key",
	Long: `Store the Gemini API key in the credential store.

The key is prompted for unless --stdin is given.

Examples:
  mcpbridge auth set-key
  echo "$KEY" | mcpbridge auth set-key --stdin`,
	Args: cobra.NoArgs,
	RunE: runAuthSetKey,
}

var authClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the stored Gemini API key",
	Args:  cobra.NoArgs,
	RunE:  runAuthClearKey,
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store a bearer token for the configured MCP server",
	Long: `Store a bearer token for the configured MCP server endpoint.

The token is sent as "Authorization: Bearer <token>" unless
server.bearerTokenEnvVar is set, which takes precedence.

Examples:
  mcpbridge auth set-token
  mcpbridge --server https://mcp.example.com auth set-token --stdin < token.txt`,
	Args: cobra.NoArgs,
	RunE: runAuthSetToken,
}

var authClearTokenCmd = &cobra.Command{
	Use:   "clear-token",
	Short: "Remove the stored bearer token for the configured MCP server",
	Args:  cobra.NoArgs,
	RunE:  runAuthClearToken,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where credentials will be read from",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authSetKeyCmd.Flags().BoolVar(&authStdin, "stdin", false, "Read the secret from stdin instead of prompting")
	authSetTokenCmd.Flags().BoolVar(&authStdin, "stdin", false, "Read the secret from stdin instead of prompting")

	authCmd.AddCommand(authSetKeyCmd, authClearKeyCmd, authSetTokenCmd, authClearTokenCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

// readSecret reads one line from r. Surrounding whitespace is dropped.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("no secret on stdin")
	}
	return secret, nil
}

func promptSecret(title string) (string, error) {
	var secret string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&secret).
		Validate(huh.ValidateNotEmpty()).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secret), nil
}

func getSecret(title string) (string, error) {
	if authStdin {
		return readSecret(os.Stdin)
	}
	return promptSecret(title)
}

// storeForAuth opens the store without requiring a server URL.
func storeForAuth() (*config.Config, secrets.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	return cfg, store, nil
}

// tokenName is the store entry for the configured endpoint's bearer token.
func tokenName(cfg *config.Config) (string, error) {
	if cfg.Server.URL == "" {
		return "", errors.New("no server configured: set server.url, MCP_SERVER_URL or --server")
	}
	return secrets.BearerTokenName(mcp.ResolveEndpoint(cfg.Server.URL, cfg.Server.EndpointPath)), nil
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	_, store, err := storeForAuth()
	if err != nil {
		return err
	}
	key, err := getSecret("Gemini API key")
	if err != nil {
		return err
	}
	if err := store.Set(secrets.GeminiAPIKey, key); err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	fmt.Println("Gemini API key stored")
	return nil
}

func runAuthClearKey(cmd *cobra.Command, args []string) error {
	_, store, err := storeForAuth()
	if err != nil {
		return err
	}
	if err := store.Delete(secrets.GeminiAPIKey); err != nil {
		return fmt.Errorf("remove API key: %w", err)
	}
	fmt.Println("Gemini API key removed")
	return nil
}

func runAuthSetToken(cmd *cobra.Command, args []string) error {
	cfg, store, err := storeForAuth()
	if err != nil {
		return err
	}
	name, err := tokenName(cfg)
	if err != nil {
		return err
	}
	token, err := getSecret("Bearer token")
	if err != nil {
		return err
	}
	if err := store.Set(name, token); err != nil {
		return fmt.Errorf("store bearer token: %w", err)
	}
	fmt.Printf("Bearer token stored for %s\n", strings.TrimPrefix(name, "bearer:"))
	return nil
}

func runAuthClearToken(cmd *cobra.Command, args []string) error {
	cfg, store, err := storeForAuth()
	if err != nil {
		return err
	}
	name, err := tokenName(cfg)
	if err != nil {
		return err
	}
	if err := store.Delete(name); err != nil {
		return fmt.Errorf("remove bearer token: %w", err)
	}
	fmt.Printf("Bearer token removed for %s\n", strings.TrimPrefix(name, "bearer:"))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, store, err := storeForAuth()
	if err != nil {
		return err
	}

	_, source, err := secrets.ResolveAPIKey(cfg.Model.APIKeyEnvVar, store)
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		fmt.Println("Gemini API key:  not set")
	case err != nil:
		fmt.Printf("Gemini API key:  error: %v\n", err)
	default:
		fmt.Printf("Gemini API key:  from %s\n", keySourceLabel(cfg, source))
	}

	if cfg.Server.BearerTokenEnvVar != "" {
		if os.Getenv(cfg.Server.BearerTokenEnvVar) != "" {
			fmt.Printf("Bearer token:    from $%s\n", cfg.Server.BearerTokenEnvVar)
		} else {
			fmt.Printf("Bearer token:    $%s is empty\n", cfg.Server.BearerTokenEnvVar)
		}
		return nil
	}

	name, err := tokenName(cfg)
	if err != nil {
		fmt.Println("Bearer token:    no server configured")
		return nil
	}
	if _, err := store.Get(name); err == nil {
		fmt.Println("Bearer token:    from credential store")
	} else {
		fmt.Println("Bearer token:    none")
	}
	return nil
}

func keySourceLabel(cfg *config.Config, source secrets.Source) string {
	if source == secrets.SourceStore {
		return "credential store"
	}
	if os.Getenv(cfg.Model.APIKeyEnvVar) != "" {
		return "$" + cfg.Model.APIKeyEnvVar
	}
	return "$" + secrets.GoogleAPIKeyEnv
}
