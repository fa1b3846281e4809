// Package codeexec implements the built-in "execute_code" tool: runs a
// short script through the interpreter matching its declared language in
// a subprocess, isolated by context timeout.
package codeexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/atlasforge/agentmesh/internal/tools"
)

const (
	maxOutputBytes = 4 * 1024
	defaultTimeout = 20 * time.Second
)

var paramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"language": {"type": "string", "enum": ["python", "javascript", "bash"]},
		"code": {"type": "string"}
	},
	"required": ["language", "code"]
}`)

var interpreters = map[string][]string{
	"python":     {"python3", "-c"},
	"javascript": {"node", "-e"},
	"bash":       {"/bin/bash", "-c"},
}

// Tool is the built-in script execution tool.
type Tool struct {
	Timeout time.Duration
}

// New builds a codeexec tool with the default 20s timeout.
func New() *Tool {
	return &Tool{Timeout: defaultTimeout}
}

func (t *Tool) Name() string            { return "execute_code" }
func (t *Tool) Description() string     { return "Execute a short script in an isolated subprocess and return its output." }
func (t *Tool) Schema() json.RawMessage { return paramSchema }

type params struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Execute runs the script through the interpreter for its language.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*tools.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	argv, ok := interpreters[p.Language]
	if !ok {
		return &tools.ToolResult{Content: fmt.Sprintf("unsupported language %q", p.Language), IsError: true}, nil
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, argv[1:]...), p.Code)
	cmd := exec.CommandContext(runCtx, argv[0], args...)
	out, err := cmd.CombinedOutput()
	text := truncate(out)
	if err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("%s\nexit error: %v", text, err), IsError: true}, nil
	}
	return &tools.ToolResult{Content: text}, nil
}

func truncate(out []byte) string {
	if len(out) <= maxOutputBytes {
		return string(out)
	}
	return fmt.Sprintf("%s...[truncated, original length: %d bytes]", out[:maxOutputBytes], len(out))
}
