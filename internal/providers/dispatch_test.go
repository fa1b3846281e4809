package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestChatCompletionBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	c := &Client{Name: "openai", APIKey: "sk-test", BaseURL: srv.URL, ChatPath: "/chat/completions", AuthStyle: models.AuthBearer, HTTP: srv.Client()}
	resp, err := c.ChatCompletion(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, nil, GenerateParams{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if resp.TotalTokens != 4 {
		t.Fatalf("unexpected usage: %+v", resp)
	}
}

func TestChatCompletionRetriesWithoutToolsOnRejection(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if attempt == 1 {
			if _, hasTools := body["tools"]; !hasTools {
				t.Fatal("expected first attempt to include tools")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"model does not support tools","type":"invalid_request_error"}}`))
			return
		}
		if _, hasTools := body["tools"]; hasTools {
			t.Fatal("expected retry to omit tools")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-2",
			"object":  "chat.completion",
			"model":   "tinyllama",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "ok"}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	c := &Client{Name: "ollama", BaseURL: srv.URL, ChatPath: "/chat/completions", AuthStyle: models.AuthNone, HTTP: srv.Client()}
	tools := []ToolDefinition{{Name: "shell", Description: "run a command"}}
	resp, err := c.ChatCompletion(context.Background(), []models.Message{{Role: models.RoleUser, Content: "run ls"}}, tools, GenerateParams{Model: "tinyllama"})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("unexpected content after retry: %q", resp.Content)
	}
	if attempt != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempt)
	}
}

func TestChatCompletionAnthropicLiftsSystemMessages(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "hi"}},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 2},
		})
	}))
	defer srv.Close()

	c := &Client{Name: "anthropic", APIKey: "ak-test", BaseURL: srv.URL, ChatPath: "/messages", AuthStyle: models.AuthHeaderKeyed, HTTP: srv.Client()}
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "be terse"},
		{Role: models.RoleUser, Content: "hi"},
	}
	resp, err := c.ChatCompletion(context.Background(), msgs, nil, GenerateParams{Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if resp.Content != "hi" {
		t.Fatalf("expected mapped content %q, got %q", "hi", resp.Content)
	}

	if _, ok := gotBody["system"]; !ok {
		t.Fatal("expected top-level system field for anthropic")
	}
	chatMsgs, ok := gotBody["messages"].([]any)
	if !ok || len(chatMsgs) != 1 {
		t.Fatalf("expected system message lifted out of messages array, got %+v", gotBody["messages"])
	}
}

func TestAnthropicResponseMapsToolUseBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_2",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "tool_use", "id": "toolu_1", "name": "shell", "input": map[string]any{"command": "ls"}},
			},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "tool_use",
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 3},
		})
	}))
	defer srv.Close()

	c := &Client{Name: "anthropic", APIKey: "ak-test", BaseURL: srv.URL, ChatPath: "/messages", AuthStyle: models.AuthHeaderKeyed, HTTP: srv.Client()}
	resp, err := c.ChatCompletion(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "run ls"},
	}, []ToolDefinition{{Name: "shell", Description: "run a command"}}, GenerateParams{Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "shell" || resp.ToolCalls[0].ID != "toolu_1" {
		t.Fatalf("expected one mapped tool call, got %+v", resp.ToolCalls)
	}
}

func TestGeminiContentsSplitsSystemAndLiftsToolResults(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "be terse"},
		{Role: models.RoleUser, Content: "run ls"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "call_1", Name: "shell", Arguments: `{"command":"ls"}`}}},
		{Role: models.RoleTool, ToolCallID: "call_1", Content: `{"output":"file.txt"}`},
	}

	system, contents := geminiContents(msgs)
	if system != "be terse" {
		t.Fatalf("expected system instruction lifted out, got %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents (user, assistant call, tool result), got %d", len(contents))
	}

	toolResult := contents[2]
	if toolResult.Parts[0].FunctionResponse == nil || toolResult.Parts[0].FunctionResponse.Name != "shell" {
		t.Fatalf("expected tool result resolved to call name %q, got %+v", "shell", toolResult.Parts[0].FunctionResponse)
	}
}

func TestGeminiResponseToResponseMapsFunctionCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "looking it up"},
				{FunctionCall: &genai.FunctionCall{Name: "shell", Args: map[string]any{"command": "ls"}}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 2, TotalTokenCount: 9},
	}

	out := geminiResponseToResponse(resp)
	if out.Content != "looking it up" {
		t.Fatalf("unexpected content: %q", out.Content)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "shell" || out.ToolCalls[0].ID == "" {
		t.Fatalf("expected one mapped function call with a synthesized id, got %+v", out.ToolCalls)
	}
	if out.TotalTokens != 9 {
		t.Fatalf("unexpected usage: %+v", out)
	}
}

func TestChatCompletionMissingAPIKey(t *testing.T) {
	c := &Client{Name: "openai", BaseURL: "http://unused", ChatPath: "/chat/completions", AuthStyle: models.AuthBearer}
	_, err := c.ChatCompletion(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, nil, GenerateParams{Model: "gpt-4o"})
	if err == nil || !strings.Contains(err.Error(), "no API key") {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}

func TestNewClientResolvesAPIKeyOverride(t *testing.T) {
	cfg, ok := Lookup("openai")
	if !ok {
		t.Fatal("expected openai in catalog")
	}
	c := NewClient(cfg, "override-key", "")
	if c.APIKey != "override-key" {
		t.Fatalf("expected override key, got %q", c.APIKey)
	}
	if c.BaseURL != cfg.BaseURL {
		t.Fatalf("expected default base url, got %q", c.BaseURL)
	}
}
