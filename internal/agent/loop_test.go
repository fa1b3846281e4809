package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/tools"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// echoTool is a minimal tool implementation used to drive the
// tool-calling loop in tests without depending on any built-in tool
// package.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input back" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`)
}
func (echoTool) Execute(_ context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	return &tools.ToolResult{Content: "echo:" + string(params)}, nil
}

// scriptedProvider serves a fixed sequence of chat-completion responses,
// one per call, regardless of request content.
func scriptedProvider(t *testing.T, responses []string) *providers.Client {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&calls, 1) - 1
		if int(i) >= len(responses) {
			t.Fatalf("unexpected extra provider call %d", i)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, responses[i])
	}))
	t.Cleanup(srv.Close)

	return &providers.Client{
		Name:      "test",
		BaseURL:   srv.URL,
		ChatPath:  "/chat",
		AuthStyle: models.AuthNone,
		HTTP:      srv.Client(),
	}
}

const textOnlyResponse = `{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`

func toolCallResponse(id, name, args string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":"","tool_calls":[{"id":%q,"function":{"name":%q,"arguments":%q}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, id, name, args)
}

func TestProcessReturnsImmediateTextReply(t *testing.T) {
	client := scriptedProvider(t, []string{textOnlyResponse})
	registry := tools.NewRegistry()

	e := New(Config{Model: "test-model"}, "you are a test agent", client, registry, WithLogger(testLogger()))

	reply, err := e.Process(context.Background(), "hi")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	stats := e.Stats()
	if stats.ToolRounds != 1 {
		t.Fatalf("expected 1 round, got %d", stats.ToolRounds)
	}
	if stats.Compacted {
		t.Fatal("did not expect compaction on a short conversation")
	}
}

func TestProcessRunsOneToolRoundThenAnswers(t *testing.T) {
	client := scriptedProvider(t, []string{
		toolCallResponse("call-1", "echo", `{"text":"ping"}`),
		textOnlyResponse,
	})
	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	e := New(Config{Model: "test-model"}, "you are a test agent", client, registry, WithLogger(testLogger()))

	reply, err := e.Process(context.Background(), "please echo ping")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	var sawToolResult bool
	for _, m := range e.conversation {
		if m.Role == models.RoleTool && m.ToolCallID == "call-1" {
			sawToolResult = true
			if m.Content == "" {
				t.Fatal("expected tool result content")
			}
		}
	}
	if !sawToolResult {
		t.Fatal("expected a tool-role message addressed to call-1")
	}
}

func TestProcessFallsBackWhenToolRoundsExhaustWithoutText(t *testing.T) {
	client := scriptedProvider(t, []string{
		toolCallResponse("call-1", "echo", `{"text":"a"}`),
		toolCallResponse("call-2", "echo", `{"text":"b"}`),
		`{"choices":[{"message":{"content":""},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
	})
	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	e := New(Config{Model: "test-model"}, "you are a test agent", client, registry, WithLogger(testLogger()))

	reply, err := e.Process(context.Background(), "keep calling tools")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got: %q", reply)
	}
}
