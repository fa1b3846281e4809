// Package websearch implements the built-in "web_search" tool behind a
// pluggable Backend so a tenant can wire in whichever search API it has
// credentials for.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlasforge/agentmesh/internal/tools"
)

var paramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"max_results": {"type": "integer"}
	},
	"required": ["query"]
}`)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Backend performs the actual web search against some provider.
type Backend interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Tool is the built-in web search tool.
type Tool struct {
	Backend           Backend
	DefaultMaxResults int
}

// New builds a web search tool against backend.
func New(backend Backend) *Tool {
	return &Tool{Backend: backend, DefaultMaxResults: 5}
}

func (t *Tool) Name() string            { return "web_search" }
func (t *Tool) Description() string     { return "Search the web and return a list of relevant results." }
func (t *Tool) Schema() json.RawMessage { return paramSchema }

type params struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Execute runs a search against the configured backend.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*tools.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	if t.Backend == nil {
		return &tools.ToolResult{Content: "no web search backend configured", IsError: true}, nil
	}
	max := p.MaxResults
	if max <= 0 {
		max = t.DefaultMaxResults
	}

	results, err := t.Backend.Search(ctx, p.Query, max)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("search failed: %v", err), IsError: true}, nil
	}
	if len(results) == 0 {
		return &tools.ToolResult{Content: "no results"}, nil
	}

	out, err := json.Marshal(results)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("marshal failed: %v", err), IsError: true}, nil
	}
	return &tools.ToolResult{Content: string(out)}, nil
}
