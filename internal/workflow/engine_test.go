package workflow

import (
	"testing"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestMessageKeywordMatch(t *testing.T) {
	rule := &models.WorkflowRule{
		ID:      "urgent-alert",
		Name:    "urgent-alert",
		Trigger: models.TriggerMessageKeyword,
		TriggerConfig: map[string]any{
			"keywords": []any{"urgent", "asap"},
		},
		Action: models.TaskAction{Kind: models.ActionNotify, Message: "alert from {{event.sender}}"},
	}
	eng := New([]*models.WorkflowRule{rule}, nil)

	now := time.Now().UTC()
	match := NewMessageEvent("telegram", "boss", "Urgent: need this asap", "123")
	actions := eng.Evaluate(match, now)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Action.Kind != models.ActionNotify {
		t.Fatalf("expected notify action, got %s", actions[0].Action.Kind)
	}
	if actions[0].Action.Message != "alert from boss" {
		t.Fatalf("expected interpolated sender, got %q", actions[0].Action.Message)
	}

	noMatch := NewMessageEvent("telegram", "bob", "hello world", "456")
	if got := eng.Evaluate(noMatch, now); len(got) != 0 {
		t.Fatalf("expected no match, got %d", len(got))
	}
}

func TestThresholdMatch(t *testing.T) {
	rule := &models.WorkflowRule{
		ID:      "too-many-messages",
		Name:    "too-many-messages",
		Trigger: models.TriggerThreshold,
		TriggerConfig: map[string]any{
			"metric":   "unanswered",
			"operator": ">",
			"value":    10.0,
		},
		Action: models.TaskAction{Kind: models.ActionAgentPrompt, Prompt: "summarize {{event.value}} unanswered messages"},
	}
	eng := New([]*models.WorkflowRule{rule}, nil)
	now := time.Now().UTC()

	actions := eng.Evaluate(NewMetricEvent("unanswered", 15), now)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Action.Prompt != "summarize 15 unanswered messages" {
		t.Fatalf("unexpected interpolated prompt: %q", actions[0].Action.Prompt)
	}

	if got := eng.Evaluate(NewMetricEvent("unanswered", 5), now); len(got) != 0 {
		t.Fatalf("expected below-threshold metric not to match, got %d", len(got))
	}
}

func TestInterpolationAcrossFields(t *testing.T) {
	rule := &models.WorkflowRule{
		ID:      "greet",
		Name:    "greet",
		Trigger: models.TriggerMessageKeyword,
		TriggerConfig: map[string]any{
			"keywords": []any{"hello"},
		},
		Action: models.TaskAction{
			Kind:      models.ActionNotify,
			Message:   "hi {{event.sender}} on {{event.channel}}!",
			DeliverTo: "{{event.channel}}:{{event.chat_id}}",
		},
	}
	eng := New([]*models.WorkflowRule{rule}, nil)
	now := time.Now().UTC()

	actions := eng.Evaluate(NewMessageEvent("telegram", "Alice", "hello bot", "chat-99"), now)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Action.Message != "hi Alice on telegram!" {
		t.Fatalf("unexpected message: %q", actions[0].Action.Message)
	}
	if actions[0].Action.DeliverTo != "telegram:chat-99" {
		t.Fatalf("unexpected deliver_to: %q", actions[0].Action.DeliverTo)
	}
}

func TestCooldownSuppressesRefire(t *testing.T) {
	rule := &models.WorkflowRule{
		ID:           "rate-limited",
		Name:         "rate-limited",
		Trigger:      models.TriggerAnyMessage,
		CooldownSecs: 60,
		Action:       models.TaskAction{Kind: models.ActionNotify, Message: "ping"},
	}
	eng := New([]*models.WorkflowRule{rule}, nil)

	now := time.Now().UTC()
	actions := eng.Evaluate(NewMessageEvent("telegram", "bob", "anything", "1"), now)
	if len(actions) != 1 {
		t.Fatalf("expected first fire to match, got %d", len(actions))
	}
	rule.LastTriggered = now
	rule.RunCount++

	if got := eng.Evaluate(NewMessageEvent("telegram", "bob", "anything", "1"), now.Add(10*time.Second)); len(got) != 0 {
		t.Fatalf("expected cooldown to suppress refire, got %d", len(got))
	}

	if got := eng.Evaluate(NewMessageEvent("telegram", "bob", "anything", "1"), now.Add(61*time.Second)); len(got) != 1 {
		t.Fatalf("expected rule to fire again once cooldown elapses, got %d", len(got))
	}
}

func TestEvaluateOrdersByPriority(t *testing.T) {
	low := &models.WorkflowRule{ID: "low", Name: "low", Trigger: models.TriggerAnyMessage, Priority: 10, Action: models.TaskAction{Kind: models.ActionNotify}}
	high := &models.WorkflowRule{ID: "high", Name: "high", Trigger: models.TriggerAnyMessage, Priority: 1, Action: models.TaskAction{Kind: models.ActionNotify}}
	eng := New([]*models.WorkflowRule{low, high}, nil)

	actions := eng.Evaluate(NewMessageEvent("telegram", "bob", "hi", "1"), time.Now().UTC())
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].RuleID != "high" || actions[1].RuleID != "low" {
		t.Fatalf("expected high-priority rule first, got %s then %s", actions[0].RuleID, actions[1].RuleID)
	}
}
