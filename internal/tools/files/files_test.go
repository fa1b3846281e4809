package files

import (
	"context"
	"encoding/json"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	tool := New(t.TempDir())
	ctx := context.Background()

	writeRaw, _ := json.Marshal(map[string]string{"op": "write", "path": "notes/todo.txt", "content": "buy milk"})
	res, err := tool.Execute(ctx, writeRaw)
	if err != nil || res.IsError {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}

	readRaw, _ := json.Marshal(map[string]string{"op": "read", "path": "notes/todo.txt"})
	res, err = tool.Execute(ctx, readRaw)
	if err != nil || res.IsError {
		t.Fatalf("read failed: err=%v res=%+v", err, res)
	}
	if res.Content != "buy milk" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	tool := New(t.TempDir())
	raw, _ := json.Marshal(map[string]string{"op": "read", "path": "../../../../etc/passwd"})
	res, err := tool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected path escape to be rejected")
	}
}

func TestListDirectory(t *testing.T) {
	tool := New(t.TempDir())
	ctx := context.Background()
	writeRaw, _ := json.Marshal(map[string]string{"op": "write", "path": "a.txt", "content": "x"})
	if res, err := tool.Execute(ctx, writeRaw); err != nil || res.IsError {
		t.Fatalf("write failed: %v %+v", err, res)
	}
	listRaw, _ := json.Marshal(map[string]string{"op": "list", "path": "."})
	res, err := tool.Execute(ctx, listRaw)
	if err != nil || res.IsError {
		t.Fatalf("list failed: %v %+v", err, res)
	}
	if res.Content != "a.txt" {
		t.Fatalf("unexpected listing: %q", res.Content)
	}
}
