package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestListModelsFallsBackToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg, _ := Lookup("openai")
	c := &Client{Name: "openai", BaseURL: srv.URL, HTTP: srv.Client()}
	got, err := c.ListModels(context.Background(), cfg, "/models")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(got) != len(cfg.DefaultModels) {
		t.Fatalf("expected fallback to default models, got %d", len(got))
	}
}

func TestListModelsParsesOpenAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}},
		})
	}))
	defer srv.Close()

	cfg, _ := Lookup("openai")
	c := &Client{Name: "openai", BaseURL: srv.URL, HTTP: srv.Client()}
	got, err := c.ListModels(context.Background(), cfg, "/models")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(got) != 2 || got[0].ID != "gpt-4o" {
		t.Fatalf("unexpected models: %+v", got)
	}
}

func TestListModelsBrainScansGGUFDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "llama-7b.gguf"), []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("BRAIN_MODEL_DIR", dir)

	cfg, _ := Lookup("brain")
	c := &Client{Name: "brain"}
	got, err := c.ListModels(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(got) != 1 || got[0].ID != "llama-7b" {
		t.Fatalf("expected single gguf model, got %+v", got)
	}
}

func TestListModelsOllamaTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "llama3.2:latest"}},
		})
	}))
	defer srv.Close()

	cfg, _ := Lookup("ollama")
	c := &Client{Name: "ollama", BaseURL: srv.URL + "/v1", HTTP: srv.Client()}
	got, err := c.ListModels(context.Background(), cfg, "/models")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(got) != 1 || got[0].ID != "llama3.2:latest" {
		t.Fatalf("unexpected models: %+v", got)
	}
}
