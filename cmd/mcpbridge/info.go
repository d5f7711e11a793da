package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thedeathtitan/mcpbridge/internal/config"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Connect to the MCP server and show what it reports",
	Long: `Connect to the configured MCP server, perform the initialize handshake
and print the server's identity.

Examples:
  mcpbridge info
  mcpbridge --server http://localhost:8080 info --json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadValidConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	conn, err := connect(cmd.Context(), cfg, optionalStore(cfg, logger), logger)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if infoJSON {
		view := struct {
			Name            string `json:"name"`
			Version         string `json:"version"`
			ProtocolVersion string `json:"protocolVersion"`
			Endpoint        string `json:"endpoint"`
			SessionID       string `json:"sessionId,omitempty"`
		}{
			Name:            conn.server.Name,
			Version:         conn.server.Version,
			ProtocolVersion: conn.server.ProtocolVersion,
			Endpoint:        conn.transport.Endpoint(),
			SessionID:       conn.transport.SessionID(),
		}
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Server:    %s %s\n", conn.server.Name, conn.server.Version)
	fmt.Printf("Protocol:  %s\n", conn.server.ProtocolVersion)
	fmt.Printf("Endpoint:  %s\n", conn.transport.Endpoint())
	if id := conn.transport.SessionID(); id != "" {
		fmt.Printf("Session:   %s\n", id)
	}
	if line := cachedToolsLine(configPath, conn.transport.Endpoint()); line != "" {
		fmt.Printf("Tools:     %s\n", line)
	}
	return nil
}

// cachedToolsLine summarizes the last tool list seen for endpoint, or ""
// when nothing is cached.
func cachedToolsLine(configPath, endpoint string) string {
	cache, err := config.NewToolCache(configPath)
	if err != nil {
		return ""
	}
	tools, ok := cache.Get(endpoint)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d cached, ~%d tokens (run 'mcpbridge tools' to refresh)", len(tools), cache.TotalTokens(endpoint))
}
