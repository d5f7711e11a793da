package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

// Global flags. They override the config file and the environment.
var (
	flagConfigPath string
	flagServer     string
	flagTimeout    time.Duration
	flagModel      string
	flagDebug      bool
)

var rootCmd = &cobra.Command{
	Use:   "mcpbridge",
	Short: "Bridge a remote MCP server's tools into a Gemini chat",
	Long: `mcpbridge talks to a remote MCP server over HTTP (JSON or SSE replies),
discovers its tools and lets a Gemini model call them.

Running without a subcommand starts the interactive chat.

Examples:
  mcpbridge --server http://localhost:8080 info
  mcpbridge tools --json
  mcpbridge call find_nodes --args '{"label":"Person"}'
  mcpbridge chat "How many Person nodes are there?"`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, nil)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Suppress errors from being printed twice
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfigPath, "config", "c", "", "Path to config file (default: ~/.config/mcpbridge/config.json)")
	pf.StringVar(&flagServer, "server", "", "MCP server URL (overrides config and MCP_SERVER_URL)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout, e.g. 10s (overrides config and MCP_TIMEOUT)")
	pf.StringVar(&flagModel, "model", "", "Gemini model name (overrides config and GEMINI_MODEL)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging to $TMPDIR/mcpbridge-debug.log")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
