// Package tools defines the Tool interface agents call during a turn and
// a thread-safe registry for looking tools up by name.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is anything an agent can invoke by name during a turn. Built-in
// tools (shell, httpclient, files, websearch, plan, codeexec) and
// MCP-bridged tools both satisfy this interface.
type Tool interface {
	// Name returns the tool name used in LLM function calling. Must be
	// unique within the registry it is added to.
	Name() string

	// Description is shown to the model to help it decide when to call
	// the tool.
	Description() string

	// Schema is the JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool against params matching Schema and returns
	// its result. A non-nil error indicates the call could not be
	// attempted at all (bad registry state); tool-level failures are
	// reported through ToolResult.IsError instead so the model can see
	// and react to them.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult carries a tool's output back to the agent turn engine.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
