package shell

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atlasforge/agentmesh/internal/tools/policy"
)

func TestExecuteRunsCommand(t *testing.T) {
	tool := New(policy.Default())
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo hello"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Content)
	}
	if res.Content != "hello\n" {
		t.Fatalf("unexpected output: %q", res.Content)
	}
}

func TestExecuteDeniesBlockedCommand(t *testing.T) {
	tool := New(policy.Default())
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"rm -rf / --no-preserve-root"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected denial to surface as tool error")
	}
}

func TestExecuteTruncatesLargeOutput(t *testing.T) {
	tool := New(policy.Default())
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"head -c 10000 /dev/zero | tr '\\0' 'a'"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Content)
	}
	if len(res.Content) >= 10000 {
		t.Fatalf("expected truncation, got %d bytes", len(res.Content))
	}
}
