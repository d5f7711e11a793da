// Command mcpbridge is a CLI for calling a remote MCP server's tools directly
// or through a Gemini chat.
package main

func main() {
	Execute()
}
