package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/thedeathtitan/mcpbridge/internal/testutil"
)

const testEndpoint = "http://localhost:8080/mcp"

func newTestCache(t *testing.T) *ToolCache {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	tc, err := NewToolCache(configPath)
	if err != nil {
		t.Fatalf("NewToolCache: %v", err)
	}
	return tc
}

func sampleTools() []CachedToolInput {
	return []CachedToolInput{
		{
			Name:        "create_node",
			Description: "Create a node with a label and properties",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"label":{"type":"string"}},"required":["label"]}`),
		},
		{
			Name:        "find_nodes",
			Description: "Find nodes by label",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"label":{"type":"string"}}}`),
		},
	}
}

func TestToolCache_UpdateAndGet(t *testing.T) {
	tc := newTestCache(t)

	if err := tc.Update(testEndpoint, sampleTools()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	tools, ok := tc.Get(testEndpoint)
	if !ok {
		t.Fatal("expected to find cached tools")
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "create_node" {
		t.Errorf("expected first tool name 'create_node', got %q", tools[0].Name)
	}
	if tools[0].TokenCount <= 0 {
		t.Errorf("expected positive token count, got %d", tools[0].TokenCount)
	}
}

func TestToolCache_TotalTokens(t *testing.T) {
	tc := newTestCache(t)
	_ = tc.Update(testEndpoint, sampleTools())

	tools, _ := tc.Get(testEndpoint)
	want := tools[0].TokenCount + tools[1].TokenCount
	if got := tc.TotalTokens(testEndpoint); got != want {
		t.Errorf("TotalTokens = %d, want %d", got, want)
	}
	if got := tc.TotalTokens("http://other/mcp"); got != 0 {
		t.Errorf("TotalTokens for unknown endpoint = %d, want 0", got)
	}
}

func TestToolCache_GetReturnsCopy(t *testing.T) {
	tc := newTestCache(t)
	_ = tc.Update(testEndpoint, sampleTools())

	tools, _ := tc.Get(testEndpoint)
	tools[0].Name = "mutated"

	again, _ := tc.Get(testEndpoint)
	if again[0].Name != "create_node" {
		t.Errorf("cache was mutated through Get result: %q", again[0].Name)
	}
}

func TestToolCache_Delete(t *testing.T) {
	tc := newTestCache(t)
	_ = tc.Update(testEndpoint, sampleTools())

	if err := tc.Delete(testEndpoint); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := tc.Get(testEndpoint); ok {
		t.Error("expected endpoint to be deleted from cache")
	}
}

func TestToolCache_Delete_Nonexistent(t *testing.T) {
	tc := newTestCache(t)
	if err := tc.Delete("http://nosuch/mcp"); err != nil {
		t.Fatalf("Delete nonexistent: %v", err)
	}
}

func TestCountToolTokens(t *testing.T) {
	tokens := CountToolTokens(
		"find_nodes",
		"Find nodes by label",
		json.RawMessage(`{"type":"object","properties":{"label":{"type":"string"}}}`),
	)
	if tokens <= 0 {
		t.Errorf("expected positive token count, got %d", tokens)
	}
}

func TestCountToolTokens_EmptyDescription(t *testing.T) {
	if tokens := CountToolTokens("tool", "", nil); tokens <= 0 {
		t.Errorf("expected positive token count, got %d", tokens)
	}
}

func TestCountToolTokens_LargeSchema(t *testing.T) {
	var schema strings.Builder
	schema.WriteString(`{"type":"object","properties":{`)
	for i := range 50 {
		if i > 0 {
			schema.WriteString(",")
		}
		schema.WriteString(`"field` + string(rune('a'+i%26)) + `":{"type":"string","description":"A field"}`)
	}
	schema.WriteString(`}}`)

	tokens := CountToolTokens("tool", "A tool with a large schema", json.RawMessage(schema.String()))
	if tokens < 50 {
		t.Errorf("expected at least 50 tokens for large schema, got %d", tokens)
	}
}

func TestEstimateFallback(t *testing.T) {
	result := estimateFallback("find_nodes", "Find nodes", json.RawMessage(`{"key":"value"}`))
	expected := (len("find_nodes") + len("Find nodes") + len(`{"key":"value"}`)) / 4
	if result != expected {
		t.Errorf("expected %d, got %d", expected, result)
	}
}

func TestToolCache_Persistence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	tc1, err := NewToolCache(configPath)
	if err != nil {
		t.Fatalf("NewToolCache: %v", err)
	}
	_ = tc1.Update(testEndpoint, sampleTools())

	tc2, err := NewToolCache(configPath)
	if err != nil {
		t.Fatalf("NewToolCache: %v", err)
	}
	tools, ok := tc2.Get(testEndpoint)
	if !ok {
		t.Fatal("expected tools to persist across instances")
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
}

func TestToolCache_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	tc, _ := NewToolCache(configPath)
	_ = tc.Update(testEndpoint, sampleTools())

	cachePath, _ := ToolCachePath(configPath)
	info, err := os.Stat(cachePath)
	if err != nil {
		t.Fatalf("stat cache file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestToolCache_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	cachePath, _ := ToolCachePath(configPath)

	data := `{"version":999,"servers":{"` + testEndpoint + `":{"tools":[{"name":"tool","tokenCount":42}]}}}`
	_ = os.WriteFile(cachePath, []byte(data), 0600)

	tc, err := NewToolCache(configPath)
	if err != nil {
		t.Fatalf("NewToolCache: %v", err)
	}
	if _, ok := tc.Get(testEndpoint); ok {
		t.Error("expected version mismatch to discard cache")
	}
}

func TestToolCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	cachePath, _ := ToolCachePath(configPath)

	_ = os.WriteFile(cachePath, []byte("{corrupt"), 0600)

	tc, err := NewToolCache(configPath)
	if err != nil {
		t.Fatalf("NewToolCache: %v", err)
	}
	if _, ok := tc.Get(testEndpoint); ok {
		t.Error("expected corrupt file to result in fresh cache")
	}
}

func TestToolCachePath_Default(t *testing.T) {
	home := testutil.SetupTestHome(t)

	path, err := ToolCachePath("")
	if err != nil {
		t.Fatalf("ToolCachePath: %v", err)
	}
	expected := filepath.Join(home, ".config", "mcpbridge", "toolcache.json")
	if path != expected {
		t.Errorf("expected %q, got %q", expected, path)
	}
}

func TestToolCachePath_CustomConfig(t *testing.T) {
	path, err := ToolCachePath("/custom/path/config.json")
	if err != nil {
		t.Fatalf("ToolCachePath: %v", err)
	}
	if path != "/custom/path/toolcache.json" {
		t.Errorf("expected /custom/path/toolcache.json, got %q", path)
	}
}

func TestToolCachePath_TildeExpansion(t *testing.T) {
	home := testutil.SetupTestHome(t)

	path, err := ToolCachePath("~/foo/config.json")
	if err != nil {
		t.Fatalf("ToolCachePath: %v", err)
	}
	expected := filepath.Join(home, "foo", "toolcache.json")
	if path != expected {
		t.Errorf("expected %q, got %q", expected, path)
	}
}

func TestToolCache_ConcurrentUpdates(t *testing.T) {
	tc := newTestCache(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tc.Update(testEndpoint, []CachedToolInput{{Name: "tool", Description: "desc"}})
		}()
	}
	wg.Wait()

	tools, ok := tc.Get(testEndpoint)
	if !ok {
		t.Fatal("expected tools to be cached after concurrent updates")
	}
	if len(tools) != 1 {
		t.Errorf("expected 1 tool, got %d", len(tools))
	}
}
