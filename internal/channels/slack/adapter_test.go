package slack

import (
	"testing"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestNewAdapterRequiresBothTokens(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatal("expected error with no tokens")
	}
	if _, err := NewAdapter(Config{BotToken: "xoxb-1"}); err == nil {
		t.Fatal("expected error with missing app token")
	}
}

func TestStripMentionsRemovesUserRefs(t *testing.T) {
	got := stripMentions("<@U123> hello <@U456> there")
	if got != "hello  there" {
		t.Fatalf("stripMentions = %q", got)
	}
}

func mustAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{BotToken: "xoxb-1", AppToken: "xapp-1"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return a
}

func TestHandleMessageSkipsChannelMessagesWithoutMentionOrThread(t *testing.T) {
	a := mustAdapter(t)
	a.handleMessage("U1", "just chatting", "C123", "100.1", "", "")

	select {
	case env := <-a.messages:
		t.Fatalf("expected channel message to be dropped, got %+v", env)
	default:
	}
}

func TestHandleMessageAcceptsDirectMessage(t *testing.T) {
	a := mustAdapter(t)
	a.handleMessage("U1", "hi bot", "D123", "100.1", "", "")

	select {
	case env := <-a.messages:
		if env.Channel != models.ChannelSlack {
			t.Errorf("Channel = %v, want %v", env.Channel, models.ChannelSlack)
		}
		if env.ThreadType != models.ThreadDirect {
			t.Errorf("ThreadType = %v, want %v", env.ThreadType, models.ThreadDirect)
		}
		if env.ThreadID != "D123" {
			t.Errorf("ThreadID = %v, want D123", env.ThreadID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestHandleMessageAcceptsMention(t *testing.T) {
	a := mustAdapter(t)
	a.botUserID = "BOT1"
	a.handleMessage("U1", "<@BOT1> what's up", "C123", "100.1", "", "")

	select {
	case env := <-a.messages:
		if env.Content != "what's up" {
			t.Errorf("Content = %q, want mention stripped", env.Content)
		}
		if env.ThreadType != models.ThreadGroup {
			t.Errorf("ThreadType = %v, want %v", env.ThreadType, models.ThreadGroup)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestHandleMessageAcceptsThreadReply(t *testing.T) {
	a := mustAdapter(t)
	a.handleMessage("U1", "a reply", "C123", "100.2", "100.1", "")

	select {
	case env := <-a.messages:
		if env.ThreadID != "C123:100.1" {
			t.Errorf("ThreadID = %v, want C123:100.1", env.ThreadID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}
