package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thedeathtitan/mcpbridge/internal/config"
	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the MCP server offers",
	Long: `List the tools the MCP server offers, with an estimate of how many
prompt tokens each declaration costs the model.

By default, outputs a human-readable table. Use --json for machine-readable output.

Examples:
  mcpbridge tools
  mcpbridge tools --json`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
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

	tools, err := conn.session.ListTools(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	endpoint := conn.transport.Endpoint()
	cache := cacheTools(configPath, endpoint, tools, logger)

	if toolsJSON {
		return outputToolsJSON(tools)
	}
	total := 0
	if cache != nil {
		total = cache.TotalTokens(endpoint)
	}
	outputToolsTable(tools, tokenCounts(cache, endpoint), total)
	return nil
}

func tokenCounts(cache *config.ToolCache, endpoint string) map[string]int {
	if cache == nil {
		return nil
	}
	cached, _ := cache.Get(endpoint)
	counts := make(map[string]int, len(cached))
	for _, t := range cached {
		counts[t.Name] = t.TokenCount
	}
	return counts
}

func outputToolsJSON(tools []mcp.ToolDescriptor) error {
	if tools == nil {
		tools = []mcp.ToolDescriptor{}
	}
	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputToolsTable(tools []mcp.ToolDescriptor, tokens map[string]int, totalTokens int) {
	if len(tools) == 0 {
		fmt.Println("No tools available")
		return
	}

	nameWidth := 4 // "NAME"
	for _, t := range tools {
		if len(t.Name) > nameWidth {
			nameWidth = len(t.Name)
		}
	}

	fmt.Printf("%-*s  %6s  %s\n", nameWidth, "NAME", "TOKENS", "DESCRIPTION")

	for _, t := range tools {
		count := "-"
		if n, ok := tokens[t.Name]; ok {
			count = fmt.Sprintf("%d", n)
		}
		fmt.Printf("%-*s  %6s  %s\n", nameWidth, t.Name, count, firstLine(t.Description, 60))
	}

	if totalTokens > 0 {
		fmt.Printf("\n%d tools, ~%d tokens\n", len(tools), totalTokens)
	}
}

// firstLine returns the first line of s, cut to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return string(r)
}
