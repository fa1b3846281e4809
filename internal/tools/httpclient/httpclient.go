// Package httpclient implements the built-in "http_request" tool: a
// bounded HTTP client an agent can use to fetch or post to external URLs.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlasforge/agentmesh/internal/tools"
)

const (
	maxResponseBytes = 64 * 1024
	defaultTimeout   = 15 * time.Second
)

var paramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string"},
		"method": {"type": "string"},
		"body": {"type": "string"},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}}
	},
	"required": ["url"]
}`)

// Tool is the built-in bounded HTTP request tool.
type Tool struct {
	Client        *http.Client
	AllowedHosts  []string // empty means any host is reachable
}

// New builds an httpclient tool with a default timeout.
func New() *Tool {
	return &Tool{Client: &http.Client{Timeout: defaultTimeout}}
}

func (t *Tool) Name() string            { return "http_request" }
func (t *Tool) Description() string     { return "Make an outbound HTTP request and return its response body." }
func (t *Tool) Schema() json.RawMessage { return paramSchema }

type params struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Execute issues the requested HTTP call, bounding both the client
// timeout and the amount of response body read back into the turn.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*tools.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	if p.URL == "" {
		return &tools.ToolResult{Content: "url is required", IsError: true}, nil
	}
	if !t.hostAllowed(p.URL) {
		return &tools.ToolResult{Content: "host not permitted by policy", IsError: true}, nil
	}

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if p.Body != "" {
		body = strings.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, body)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("bad request: %v", err), IsError: true}, nil
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("request failed: %v", err), IsError: true}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("read failed: %v", err), IsError: true}, nil
	}

	result := fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, data)
	if resp.StatusCode >= 400 {
		return &tools.ToolResult{Content: result, IsError: true}, nil
	}
	return &tools.ToolResult{Content: result}, nil
}

func (t *Tool) hostAllowed(rawURL string) bool {
	if len(t.AllowedHosts) == 0 {
		return true
	}
	for _, host := range t.AllowedHosts {
		if strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}
