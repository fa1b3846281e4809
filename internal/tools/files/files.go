// Package files implements the built-in "file" tool: sandboxed
// read/write access confined to a tenant's workspace root.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlasforge/agentmesh/internal/tools"
)

const maxFileBytes = 256 * 1024

var paramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"op": {"type": "string", "enum": ["read", "write", "list", "delete"]},
		"path": {"type": "string"},
		"content": {"type": "string"}
	},
	"required": ["op", "path"]
}`)

// Tool is the built-in sandboxed file tool. Root is the tenant
// workspace directory; every path is resolved relative to it and
// rejected if it would escape Root.
type Tool struct {
	Root string
}

// New builds a files tool rooted at root.
func New(root string) *Tool {
	return &Tool{Root: root}
}

func (t *Tool) Name() string            { return "file" }
func (t *Tool) Description() string     { return "Read, write, list, or delete files within the agent's workspace." }
func (t *Tool) Schema() json.RawMessage { return paramSchema }

type params struct {
	Op      string `json:"op"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *Tool) resolve(rel string) (string, error) {
	cleaned := filepath.Clean("/" + rel)
	full := filepath.Join(t.Root, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(t.Root)+string(filepath.Separator)) && full != filepath.Clean(t.Root) {
		return "", fmt.Errorf("path escapes workspace root")
	}
	return full, nil
}

// Execute performs the requested filesystem operation.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*tools.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	full, err := t.resolve(p.Path)
	if err != nil {
		return &tools.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	switch p.Op {
	case "read":
		data, err := os.ReadFile(full)
		if err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("read failed: %v", err), IsError: true}, nil
		}
		if len(data) > maxFileBytes {
			data = data[:maxFileBytes]
		}
		return &tools.ToolResult{Content: string(data)}, nil

	case "write":
		if len(p.Content) > maxFileBytes {
			return &tools.ToolResult{Content: "content exceeds max file size", IsError: true}, nil
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("mkdir failed: %v", err), IsError: true}, nil
		}
		if err := os.WriteFile(full, []byte(p.Content), 0o644); err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("write failed: %v", err), IsError: true}, nil
		}
		return &tools.ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(p.Content), p.Path)}, nil

	case "list":
		entries, err := os.ReadDir(full)
		if err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("list failed: %v", err), IsError: true}, nil
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name()+"/")
			} else {
				names = append(names, e.Name())
			}
		}
		return &tools.ToolResult{Content: strings.Join(names, "\n")}, nil

	case "delete":
		if err := os.Remove(full); err != nil {
			return &tools.ToolResult{Content: fmt.Sprintf("delete failed: %v", err), IsError: true}, nil
		}
		return &tools.ToolResult{Content: fmt.Sprintf("deleted %s", p.Path)}, nil

	default:
		return &tools.ToolResult{Content: fmt.Sprintf("unknown op %q", p.Op), IsError: true}, nil
	}
}
