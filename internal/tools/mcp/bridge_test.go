package mcp

import (
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func TestBridgeToolNamespacesName(t *testing.T) {
	original := mcpgo.Tool{Name: "search", Description: "search the docs"}
	bt := NewBridgeTool("docs-server", original, nil)

	if bt.Name() != "mcp:docs-server:search" {
		t.Fatalf("unexpected namespaced name: %q", bt.Name())
	}
	if bt.OriginalName() != "search" {
		t.Fatalf("unexpected original name: %q", bt.OriginalName())
	}
	if bt.Description() != "search the docs" {
		t.Fatalf("unexpected description: %q", bt.Description())
	}
}

func TestRenderContentJoinsTextBlocks(t *testing.T) {
	result := &mcpgo.CallToolResult{
		Content: []mcpgo.Content{
			mcpgo.TextContent{Type: "text", Text: "first"},
			mcpgo.TextContent{Type: "text", Text: "second"},
		},
	}
	if got := renderContent(result); got != "first\nsecond" {
		t.Fatalf("unexpected rendered content: %q", got)
	}
}
