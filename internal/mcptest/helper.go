// Package mcptest provides test infrastructure for MCP client testing.
package mcptest

import (
	"net/http/httptest"
	"testing"

	"github.com/thedeathtitan/mcpbridge/internal/mcptest/fakeserver"
)

// FakeServerConfig is an alias for fakeserver.Config for convenience.
type FakeServerConfig = fakeserver.Config

// Tool is an alias for fakeserver.Tool for convenience.
type Tool = fakeserver.Tool

// JSONRPCError is an alias for fakeserver.JSONRPCError for convenience.
type JSONRPCError = fakeserver.JSONRPCError

// Mode is an alias for fakeserver.Mode for convenience.
type Mode = fakeserver.Mode

// ContentBlock is an alias for fakeserver.ContentBlock for convenience.
type ContentBlock = fakeserver.ContentBlock

// FakeServer is a running fake MCP server.
type FakeServer struct {
	*fakeserver.Server
	HTTP *httptest.Server
}

// BaseURL returns the server root, without the endpoint path.
func (f *FakeServer) BaseURL() string {
	return f.HTTP.URL
}

// URL returns the full MCP endpoint URL.
func (f *FakeServer) URL() string {
	return f.HTTP.URL + "/mcp"
}

// StartFakeServer starts a fake MCP server on a loopback port, mounted at /mcp.
// It is closed automatically when the test ends.
func StartFakeServer(t testing.TB, cfg FakeServerConfig) *FakeServer {
	t.Helper()

	fake := fakeserver.New(cfg)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return &FakeServer{Server: fake, HTTP: srv}
}
