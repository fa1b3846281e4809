package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/atlasforge/agentmesh/internal/tools"
)

// BridgeTool wraps one tool discovered on an external MCP server so it
// satisfies the native tools.Tool interface. Its registry name is
// namespaced "mcp:<server>:<tool>" to avoid collisions with built-ins.
type BridgeTool struct {
	server       string
	original     mcpgo.Tool
	client       *mcpclient.Client
	namespaced   string
}

// NewBridgeTool builds a BridgeTool for one tool advertised by server.
func NewBridgeTool(server string, original mcpgo.Tool, client *mcpclient.Client) *BridgeTool {
	return &BridgeTool{
		server:     server,
		original:   original,
		client:     client,
		namespaced: fmt.Sprintf("mcp:%s:%s", server, original.Name),
	}
}

// OriginalName is the tool's name as advertised by the MCP server,
// before namespacing.
func (b *BridgeTool) OriginalName() string { return b.original.Name }

func (b *BridgeTool) Name() string        { return b.namespaced }
func (b *BridgeTool) Description() string { return b.original.Description }

func (b *BridgeTool) Schema() json.RawMessage {
	raw, err := json.Marshal(b.original.InputSchema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}

// Execute forwards the call to the MCP server via CallTool.
func (b *BridgeTool) Execute(ctx context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	var args map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
		}
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.original.Name
	req.Params.Arguments = args

	result, err := b.client.CallTool(ctx, req)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("mcp call failed: %v", err), IsError: true}, nil
	}

	text := renderContent(result)
	return &tools.ToolResult{Content: text, IsError: result.IsError}, nil
}

func renderContent(result *mcpgo.CallToolResult) string {
	var out string
	for _, item := range result.Content {
		if tc, ok := item.(mcpgo.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += tc.Text
		}
	}
	if out == "" {
		if raw, err := json.Marshal(result.Content); err == nil {
			return string(raw)
		}
	}
	return out
}
