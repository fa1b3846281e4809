package codeexec

import (
	"context"
	"encoding/json"
	"testing"
)

func TestExecutePython(t *testing.T) {
	tool := New()
	raw, _ := json.Marshal(map[string]string{"language": "python", "code": "print('hi')"})
	res, err := tool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Skipf("python3 not available in this environment: %s", res.Content)
	}
	if res.Content != "hi\n" {
		t.Fatalf("unexpected output: %q", res.Content)
	}
}

func TestExecuteRejectsUnknownLanguage(t *testing.T) {
	tool := New()
	raw, _ := json.Marshal(map[string]string{"language": "rust", "code": "fn main(){}"})
	res, err := tool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected unsupported language to error")
	}
}
