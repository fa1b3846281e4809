package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/atlasforge/agentmesh/internal/apperror"
)

type echoTool struct{ name string }

func (e echoTool) Name() string                 { return e.name }
func (e echoTool) Description() string          { return "echoes its input" }
func (e echoTool) Schema() json.RawMessage       { return json.RawMessage(`{"type":"object"}`) }
func (e echoTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: string(params)}, nil
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{name: "echo"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(echoTool{name: "echo"})
	if err == nil {
		t.Fatal("expected error registering duplicate tool name")
	}
	if !apperror.Is(err, apperror.Conflict) {
		t.Fatalf("expected Conflict kind, got %v", err)
	}
}

func TestExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "not found") {
		t.Fatalf("expected not-found error result, got %+v", res)
	}
}

func TestExecuteOversizedParamsRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{name: "echo"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	big := make([]byte, MaxToolParamsSize+1)
	res, err := r.Execute(context.Background(), "echo", big)
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected oversized params to be rejected")
	}
}

func TestUnregisterRemovesTool(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{name: "echo"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister("echo")
	if _, ok := r.Get("echo"); ok {
		t.Fatal("expected tool to be gone after unregister")
	}
}

func TestAsLLMToolsReturnsAllRegistered(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool{name: "a"}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(echoTool{name: "b"}); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if len(r.AsLLMTools()) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(r.AsLLMTools()))
	}
}
