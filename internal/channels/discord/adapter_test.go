package discord

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNewAdapterAppliesDefaults(t *testing.T) {
	a, err := NewAdapter(Config{Token: "tok"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if a.cfg.RateLimit != 5 || a.cfg.RateBurst != 10 {
		t.Fatalf("expected default rate limit 5/10, got %v/%d", a.cfg.RateLimit, a.cfg.RateBurst)
	}
}

func TestHandleMessageCreateIgnoresBotAuthors(t *testing.T) {
	a, err := NewAdapter(Config{Token: "tok"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	botMsg := &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "bot-msg-1",
			ChannelID: "chan-1",
			Content:   "ignored",
			Author:    &discordgo.User{ID: "bot-1", Username: "bot", Bot: true},
		},
	}
	a.handleMessageCreate(nil, botMsg)
	select {
	case env := <-a.messages:
		t.Fatalf("expected bot message to be ignored, got %+v", env)
	default:
	}
}

func TestHandleMessageCreateConvertsDirectMessage(t *testing.T) {
	a, err := NewAdapter(Config{Token: "tok"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	userMsg := &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-1",
			ChannelID: "chan-1",
			GuildID:   "",
			Content:   "hello there",
			Author:    &discordgo.User{ID: "user-1", Username: "alice"},
		},
	}
	a.handleMessageCreate(nil, userMsg)

	select {
	case env := <-a.messages:
		if env.Channel != models.ChannelDiscord {
			t.Errorf("Channel = %v, want %v", env.Channel, models.ChannelDiscord)
		}
		if env.ThreadID != "chan-1" {
			t.Errorf("ThreadID = %v, want chan-1", env.ThreadID)
		}
		if env.SenderID != "user-1" || env.SenderName != "alice" {
			t.Errorf("sender = %v/%v, want user-1/alice", env.SenderID, env.SenderName)
		}
		if env.Content != "hello there" {
			t.Errorf("Content = %v, want %q", env.Content, "hello there")
		}
		if env.ThreadType != models.ThreadDirect {
			t.Errorf("ThreadType = %v, want %v (empty GuildID implies DM)", env.ThreadType, models.ThreadDirect)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for converted envelope")
	}
}

func TestHandleMessageCreateGuildMessageIsGroupThread(t *testing.T) {
	a, err := NewAdapter(Config{Token: "tok"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	userMsg := &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-2",
			ChannelID: "chan-2",
			GuildID:   "guild-1",
			Content:   "hi all",
			Author:    &discordgo.User{ID: "user-2", Username: "bob"},
		},
	}
	a.handleMessageCreate(nil, userMsg)

	select {
	case env := <-a.messages:
		if env.ThreadType != models.ThreadGroup {
			t.Errorf("ThreadType = %v, want %v for guild message", env.ThreadType, models.ThreadGroup)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for converted envelope")
	}
}

func TestStatusAndHealthCheckBeforeStart(t *testing.T) {
	a, err := NewAdapter(Config{Token: "tok"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if a.Status().Connected {
		t.Fatal("expected disconnected status before Start")
	}
	hc := a.HealthCheck(context.Background())
	if hc.Healthy {
		t.Fatal("expected unhealthy before session is open")
	}
}
