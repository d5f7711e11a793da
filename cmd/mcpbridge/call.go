package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thedeathtitan/mcpbridge/internal/mcp"
)

var (
	callArgs string
	callRaw  bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a single MCP tool and print its result",
	Long: `Call a tool on the MCP server without involving the model.

Arguments are passed as a JSON object. Text results are printed as-is;
results without text content are printed as JSON.

Examples:
  mcpbridge call find_nodes --args '{"label":"Person"}'
  mcpbridge call list_labels`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "", "Tool arguments as a JSON object")
	callCmd.Flags().BoolVar(&callRaw, "raw", false, "Print the result as JSON even when it is text")
	rootCmd.AddCommand(callCmd)
}

// parseToolArgs decodes a JSON object. An empty string is no arguments.
func parseToolArgs(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	if args == nil {
		return nil, errors.New("--args must be a JSON object, got null")
	}
	return args, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	toolArgs, err := parseToolArgs(callArgs)
	if err != nil {
		return err
	}

	cfg, _, err := loadValidConfig()
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

	res := conn.session.CallTool(cmd.Context(), args[0], toolArgs)
	if !res.Success {
		return res.Err
	}
	return printToolResult(res, callRaw)
}

func printToolResult(res *mcp.ToolCallResult, raw bool) error {
	if res.Shape == mcp.ShapeText && !raw {
		fmt.Println(res.Text)
		return nil
	}
	data, err := json.MarshalIndent(res.Payload(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
