package websearch

import (
	"context"
	"encoding/json"
	"testing"
)

type stubBackend struct {
	results []Result
	err     error
	lastN   int
}

func (b *stubBackend) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	b.lastN = maxResults
	return b.results, b.err
}

func TestExecuteReturnsResults(t *testing.T) {
	backend := &stubBackend{results: []Result{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}}
	tool := New(backend)
	raw, _ := json.Marshal(map[string]any{"query": "golang"})
	res, err := tool.Execute(context.Background(), raw)
	if err != nil || res.IsError {
		t.Fatalf("execute failed: err=%v res=%+v", err, res)
	}
	if backend.lastN != 5 {
		t.Fatalf("expected default max_results 5, got %d", backend.lastN)
	}
}

func TestExecuteNoBackendConfigured(t *testing.T) {
	tool := New(nil)
	raw, _ := json.Marshal(map[string]any{"query": "golang"})
	res, err := tool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected missing backend to error")
	}
}
