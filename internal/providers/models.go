package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// ListModels returns the models a provider currently offers, falling back
// to the catalog's static DefaultModels when the backend can't be reached
// or returns nothing useful.
func (c *Client) ListModels(ctx context.Context, cfg Config, modelsPath string) ([]models.ModelInfo, error) {
	switch c.Name {
	case "brain":
		return c.listBrainModels(cfg)
	case "gemini":
		return defaultModelInfos(cfg), nil
	case "ollama":
		if ms, ok := c.listOllamaTags(ctx); ok {
			return ms, nil
		}
		return defaultModelInfos(cfg), nil
	}

	if modelsPath == "" {
		return defaultModelInfos(cfg), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+modelsPath, nil)
	if err != nil {
		return defaultModelInfos(cfg), nil
	}
	c.applyModelsAuth(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return defaultModelInfos(cfg), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return defaultModelInfos(cfg), nil
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return defaultModelInfos(cfg), nil
	}
	if len(parsed.Data) == 0 {
		return defaultModelInfos(cfg), nil
	}

	out := make([]models.ModelInfo, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID == "" {
			continue
		}
		out = append(out, models.ModelInfo{
			ID:              m.ID,
			Name:            m.ID,
			Provider:        c.Name,
			ContextLength:   4096,
			MaxOutputTokens: 4096,
		})
	}
	if len(out) == 0 {
		return defaultModelInfos(cfg), nil
	}
	return out, nil
}

func defaultModelInfos(cfg Config) []models.ModelInfo {
	out := make([]models.ModelInfo, len(cfg.DefaultModels))
	for i, m := range cfg.DefaultModels {
		out[i] = m.toModelInfo(cfg.Name)
	}
	return out
}

// listOllamaTags hits Ollama's native /api/tags endpoint, which reports
// locally pulled models — the OpenAI-compatible /v1/models path Ollama
// exposes doesn't carry size/family metadata this well.
func (c *Client) listOllamaTags(ctx context.Context) ([]models.ModelInfo, bool) {
	base := strings.TrimSuffix(c.BaseURL, "/v1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Models) == 0 {
		return nil, false
	}

	out := make([]models.ModelInfo, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		out = append(out, models.ModelInfo{
			ID:              m.Name,
			Name:            m.Name,
			Provider:        "ollama",
			ContextLength:   4096,
			MaxOutputTokens: 4096,
		})
	}
	return out, true
}

// brainModelDir is the directory scanned for locally hosted GGUF weights.
// Overridable via BRAIN_MODEL_DIR for testing and deployment.
func brainModelDir() string {
	if v := os.Getenv("BRAIN_MODEL_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentmesh", "models")
}

// listBrainModels scans the local model directory for GGUF files. This is
// filesystem discovery only: no weight loading or inference happens here,
// the local "brain" server owns that.
func (c *Client) listBrainModels(cfg Config) ([]models.ModelInfo, error) {
	dir := brainModelDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return defaultModelInfos(cfg), nil
	}

	var out []models.ModelInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".gguf") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".gguf")
		out = append(out, models.ModelInfo{
			ID:              id,
			Name:            id,
			Provider:        "brain",
			ContextLength:   8192,
			MaxOutputTokens: 4096,
		})
	}
	if len(out) == 0 {
		return defaultModelInfos(cfg), nil
	}
	return out, nil
}
