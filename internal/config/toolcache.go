package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tiktoken-go/tokenizer"
)

const ToolCacheVersion = 1

// ToolCache stores the last tools/list seen per server endpoint together with
// an estimate of how many prompt tokens each declaration costs the model.
// It is persisted alongside the active config file.
type ToolCache struct {
	path  string
	cache toolCacheFile
	mu    sync.RWMutex
}

type toolCacheFile struct {
	Version int                        `json:"version"`
	Servers map[string]ServerToolCache `json:"servers"`
}

// ServerToolCache stores cached tool data for a single endpoint.
type ServerToolCache struct {
	Tools     []CachedTool `json:"tools"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CachedTool stores a tool definition with its precomputed token count.
type CachedTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	TokenCount  int             `json:"tokenCount"`
}

// CachedToolInput is the input for updating cached tools. It mirrors
// mcp.ToolDescriptor without importing the protocol package.
type CachedToolInput struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCachePath returns the cache file path co-located with the config file.
func ToolCachePath(configPath string) (string, error) {
	if configPath == "" {
		p, err := ConfigPath()
		if err != nil {
			return "", err
		}
		configPath = p
	}
	expanded, err := expandHome(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(expanded), "toolcache.json"), nil
}

// NewToolCache creates or loads a tool cache for the given config path.
func NewToolCache(configPath string) (*ToolCache, error) {
	path, err := ToolCachePath(configPath)
	if err != nil {
		return nil, err
	}
	tc := &ToolCache{
		path: path,
		cache: toolCacheFile{
			Version: ToolCacheVersion,
			Servers: make(map[string]ServerToolCache),
		},
	}
	tc.load()
	return tc, nil
}

// Update replaces the cached tools for endpoint and saves the file.
func (tc *ToolCache) Update(endpoint string, tools []CachedToolInput) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	cached := make([]CachedTool, len(tools))
	for i, t := range tools {
		cached[i] = CachedTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			TokenCount:  CountToolTokens(t.Name, t.Description, t.InputSchema),
		}
	}
	tc.cache.Servers[endpoint] = ServerToolCache{
		Tools:     cached,
		UpdatedAt: time.Now(),
	}
	return tc.save()
}

// Get retrieves cached tools for an endpoint.
func (tc *ToolCache) Get(endpoint string) ([]CachedTool, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	entry, ok := tc.cache.Servers[endpoint]
	if !ok {
		return nil, false
	}
	return append([]CachedTool(nil), entry.Tools...), true
}

// TotalTokens sums the token counts of every cached tool for endpoint.
func (tc *ToolCache) TotalTokens(endpoint string) int {
	tools, _ := tc.Get(endpoint)
	total := 0
	for _, t := range tools {
		total += t.TokenCount
	}
	return total
}

// Delete removes an endpoint from the cache.
func (tc *ToolCache) Delete(endpoint string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, ok := tc.cache.Servers[endpoint]; !ok {
		return nil
	}
	delete(tc.cache.Servers, endpoint)
	return tc.save()
}

func (tc *ToolCache) load() {
	data, err := os.ReadFile(tc.path)
	if err != nil {
		return
	}

	var file toolCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}

	// Stale format: start empty.
	if file.Version != ToolCacheVersion {
		return
	}

	if file.Servers == nil {
		file.Servers = make(map[string]ServerToolCache)
	}
	tc.cache = file
}

func (tc *ToolCache) save() error {
	dir := filepath.Dir(tc.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(tc.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tool cache: %w", err)
	}

	tmpFile := tc.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}

	if err := os.Rename(tmpFile, tc.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("rename cache: %w", err)
	}

	return nil
}

// CountToolTokens estimates how many prompt tokens a tool declaration costs:
// its name, description and input schema.
func CountToolTokens(name, description string, inputSchema json.RawMessage) int {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return estimateFallback(name, description, inputSchema)
	}

	total := countOrZero(codec, name)
	if description != "" {
		total += countOrZero(codec, description)
	}
	if len(inputSchema) > 0 {
		total += countOrZero(codec, string(inputSchema))
	}
	return total
}

func countOrZero(codec tokenizer.Codec, text string) int {
	tokens, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(tokens)
}

func estimateFallback(name, desc string, schema json.RawMessage) int {
	return (len(name) + len(desc) + len(schema)) / 4
}
