package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// ToolDefinition is the schema an agent exposes to a provider.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// GenerateParams carries the per-call sampling knobs.
type GenerateParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response is what every provider call normalizes down to, regardless of
// the wire shape the backend actually speaks.
type Response struct {
	Content      string
	ToolCalls    []models.ToolCall
	FinishReason string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
}

// Client dispatches chat completions to one resolved provider instance.
// Every catalog entry speaks one of three families: the OpenAI
// chat-completions schema (the default, covering every bearer/proxy
// backend including Azure), Anthropic's /v1/messages shape, or Google's
// Gemini API — each routed through its own SDK rather than a hand-rolled
// wire mapping.
type Client struct {
	Name      string
	APIKey    string
	BaseURL   string
	ChatPath  string
	AuthStyle models.AuthStyle
	HTTP      *http.Client
}

// NewClient resolves credentials and base URL for a catalog entry and
// returns a ready-to-use dispatcher. apiKeyOverride (from tenant/platform
// config) takes priority over the provider's env var search order.
func NewClient(cfg Config, apiKeyOverride, baseURLOverride string) *Client {
	apiKey := apiKeyOverride
	if apiKey == "" {
		for _, k := range cfg.EnvKeys {
			if v := os.Getenv(k); v != "" {
				apiKey = v
				break
			}
		}
	}

	baseURL := baseURLOverride
	if baseURL == "" && cfg.BaseURLEnv != "" {
		if v := os.Getenv(cfg.BaseURLEnv); v != "" {
			if strings.HasSuffix(v, "/v1") {
				baseURL = v
			} else {
				baseURL = strings.TrimRight(v, "/") + "/v1"
			}
		}
	}
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}

	return &Client{
		Name:      cfg.Name,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		ChatPath:  cfg.ChatPath,
		AuthStyle: cfg.AuthStyle,
		HTTP:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) isAnthropic() bool {
	return c.Name == "anthropic" || strings.Contains(c.BaseURL, "anthropic")
}

func (c *Client) isGemini() bool {
	return c.Name == "gemini" || strings.Contains(c.BaseURL, "generativelanguage")
}

// httpClient returns the transport every provider SDK client is built
// around, so retries, timeouts, and (in tests) httptest servers reach the
// dispatcher the same way regardless of which SDK handles the call.
func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 120 * time.Second}
}

// applyModelsAuth attaches credentials to the generic REST models-listing
// request; chat completions no longer build raw *http.Request values since
// each provider family now routes through its own SDK client.
func (c *Client) applyModelsAuth(req *http.Request) {
	switch c.AuthStyle {
	case models.AuthBearer:
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
	case models.AuthHeaderKeyed:
		if c.APIKey != "" {
			if c.isAnthropic() {
				req.Header.Set("x-api-key", c.APIKey)
				req.Header.Set("anthropic-version", "2023-06-01")
			} else {
				req.Header.Set("api-key", c.APIKey)
			}
		}
	}
}

// ChatCompletion sends one chat request through the provider's own SDK,
// retrying exactly once without tool definitions if the backend rejects
// the call because the model doesn't support tools.
func (c *Client) ChatCompletion(ctx context.Context, messages []models.Message, tools []ToolDefinition, params GenerateParams) (*Response, error) {
	if c.AuthStyle != models.AuthNone && c.APIKey == "" {
		return nil, apperror.Newf(apperror.Provider, nil, "provider %s: no API key configured", c.Name)
	}

	switch {
	case c.isAnthropic():
		return c.chatCompletionAnthropic(ctx, messages, tools, params)
	case c.isGemini():
		return c.chatCompletionGemini(ctx, messages, tools, params)
	default:
		return c.chatCompletionOpenAI(ctx, messages, tools, params)
	}
}

// rejectsTools recognizes the handful of phrasings backends use to refuse
// a request because the selected model has no tool-calling support.
func rejectsTools(text string) bool {
	text = strings.ToLower(text)
	return strings.Contains(text, "does not support tools") ||
		strings.Contains(text, "does not support tool") ||
		strings.Contains(text, "tool_use is not supported") ||
		strings.Contains(text, "does not support function")
}
