// Package discord bridges a Discord bot session to the normalized
// envelope contract the agent turn engine consumes.
package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Config holds the Discord adapter's tunables.
type Config struct {
	Token     string
	RateLimit rate.Limit
	RateBurst int
	Logger    *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Adapter implements channels.Adapter for Discord.
type Adapter struct {
	cfg      Config
	session  *discordgo.Session
	messages chan *models.IncomingEnvelope
	limiter  *rate.Limiter
	logger   *slog.Logger
	health   *channels.BaseHealthAdapter
}

// NewAdapter validates cfg and returns an unstarted Discord adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, apperror.New(apperror.Config, "discord: token is required", nil)
	}
	cfg.applyDefaults()
	return &Adapter{
		cfg:      cfg,
		messages: make(chan *models.IncomingEnvelope, 100),
		limiter:  rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:   cfg.Logger.With("adapter", "discord"),
		health:   channels.NewBaseHealthAdapter(),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelDiscord }

// Start opens the gateway session and registers the message handler.
func (a *Adapter) Start(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + a.cfg.Token)
	if err != nil {
		a.health.SetStatus(false, err.Error())
		return apperror.New(apperror.ChannelError, "discord: failed to create session", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages
	dg.AddHandler(a.handleMessageCreate)

	if err := dg.Open(); err != nil {
		a.health.SetStatus(false, err.Error())
		return apperror.New(apperror.ChannelError, "discord: failed to open gateway session", err)
	}
	a.session = dg
	a.health.SetStatus(true, "")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	close(a.messages)
	if err := a.session.Close(); err != nil {
		return apperror.New(apperror.ChannelError, "discord: failed to close session", err)
	}
	a.health.SetStatus(false, "")
	return nil
}

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author != nil && m.Author.Bot {
		return
	}
	threadType := models.ThreadGroup
	if m.GuildID == "" {
		threadType = models.ThreadDirect
	}
	env := &models.IncomingEnvelope{
		Channel:    models.ChannelDiscord,
		ThreadID:   m.ChannelID,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		Content:    m.Content,
		ThreadType: threadType,
		Timestamp:  time.Now().UTC(),
	}
	a.health.UpdateLastPing()
	select {
	case a.messages <- env:
	default:
		a.logger.Warn("messages channel full, dropping message", "channel_id", m.ChannelID)
	}
}

// Send delivers a reply to the Discord channel identified by msg.ThreadID.
func (a *Adapter) Send(ctx context.Context, msg *models.OutgoingEnvelope) error {
	if a.session == nil {
		return apperror.New(apperror.Internal, "discord: adapter not started", nil)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.Timeout, "discord: rate limit wait cancelled", err)
	}
	if _, err := a.session.ChannelMessageSend(msg.ThreadID, msg.Content); err != nil {
		return apperror.New(apperror.ChannelError, "discord: send failed", err)
	}
	return nil
}

func (a *Adapter) Messages() <-chan *models.IncomingEnvelope { return a.messages }

func (a *Adapter) Status() channels.Status { return a.health.Status() }

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	if a.session == nil || a.session.State == nil {
		return channels.HealthStatus{LastCheck: start, Message: "session not open"}
	}
	return channels.HealthStatus{Healthy: true, LastCheck: start, Latency: time.Since(start), Message: "healthy"}
}
