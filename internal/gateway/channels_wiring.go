package gateway

import (
	"context"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/internal/channels/discord"
	"github.com/atlasforge/agentmesh/internal/channels/email"
	"github.com/atlasforge/agentmesh/internal/channels/slack"
	"github.com/atlasforge/agentmesh/internal/channels/telegram"
	"github.com/atlasforge/agentmesh/internal/channels/webhook"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// loadChannels registers one adapter per configured channel type from the
// tenant's on-disk config; a channel with no credentials configured is
// simply left unregistered rather than erroring.
func (s *Server) loadChannels(ctx context.Context) error {
	if tok := s.cfg.Channels.Telegram["token"]; tok != "" {
		a, err := telegram.NewAdapter(telegram.Config{Token: tok, Logger: s.logger})
		if err != nil {
			s.logger.Warn("telegram adapter init failed", "error", err)
		} else {
			s.channels.Register(a)
		}
	}
	if tok := s.cfg.Channels.Discord["token"]; tok != "" {
		a, err := discord.NewAdapter(discord.Config{Token: tok, Logger: s.logger})
		if err != nil {
			s.logger.Warn("discord adapter init failed", "error", err)
		} else {
			s.channels.Register(a)
		}
	}
	if bot := s.cfg.Channels.Slack["bot_token"]; bot != "" {
		a, err := slack.NewAdapter(slack.Config{
			BotToken: bot,
			AppToken: s.cfg.Channels.Slack["app_token"],
			Logger:   s.logger,
		})
		if err != nil {
			s.logger.Warn("slack adapter init failed", "error", err)
		} else {
			s.channels.Register(a)
		}
	}
	if addr := s.cfg.Channels.Email["email"]; addr != "" {
		a, err := email.NewAdapter(email.Config{
			IMAPHost:    s.cfg.Channels.Email["imap_host"],
			SMTPHost:    s.cfg.Channels.Email["smtp_host"],
			Email:       addr,
			Password:    s.cfg.Channels.Email["password"],
			DisplayName: s.cfg.Channels.Email["display_name"],
			Logger:      s.logger,
		})
		if err != nil {
			s.logger.Warn("email adapter init failed", "error", err)
		} else {
			s.channels.Register(a)
		}
	}
	if secret := s.cfg.Channels.Webhook["secret"]; secret != "" {
		a, err := webhook.NewAdapter(webhook.Config{
			Secret:      secret,
			OutboundURL: s.cfg.Channels.Webhook["outbound_url"],
			Logger:      s.logger,
		})
		if err != nil {
			s.logger.Warn("webhook adapter init failed", "error", err)
		} else {
			s.channels.Register(a)
		}
	}
	return nil
}

// reloadChannels tears down and rebuilds every adapter against the
// current in-memory config, used after a channel configuration update.
func (s *Server) reloadChannels(ctx context.Context) {
	_ = s.channels.StopAll(ctx)
	s.channels = channels.NewRegistry()
	if err := s.loadChannels(ctx); err != nil {
		s.logger.Warn("reload channels failed", "error", err)
	}
	if err := s.channels.StartAll(ctx); err != nil {
		s.logger.Warn("start channels failed", "error", err)
	}
}

// consumeInbound drains every adapter's normalized inbound stream,
// dispatches each message to its bound agent (or the default agent, if
// none is bound), evaluates workflow rules against the same event, and
// delivers the reply back out through the originating channel.
func (s *Server) consumeInbound(ctx context.Context) {
	for env := range s.channels.Aggregate(ctx) {
		s.handleInboundEnvelope(ctx, env)
	}
}

func (s *Server) handleInboundEnvelope(ctx context.Context, env *models.IncomingEnvelope) {
	agentName := s.agentForChannel(ctx, env.Channel)
	if agentName != "" {
		reply, err := s.pool.RunAgentPrompt(ctx, agentName, env.Content)
		if err != nil {
			s.logger.Warn("inbound message processing failed", "channel", env.Channel, "error", err)
		} else if reply != "" {
			s.deliverToChannel(ctx, env.Channel, env.ThreadID, reply)
		}
	}

	s.dispatchWorkflow(ctx, env)
}

// agentForChannel resolves the bound agent for a channel type by scanning
// configured channel instances; it returns the first enabled agent if none
// is explicitly bound.
func (s *Server) agentForChannel(ctx context.Context, ch models.ChannelType) string {
	instances, err := s.db.ListChannelInstances(ctx)
	if err != nil {
		return ""
	}
	for _, inst := range instances {
		if inst.Type == ch && inst.Enabled && inst.AgentName != "" {
			return inst.AgentName
		}
	}
	agents, err := s.db.ListAgents(ctx)
	if err != nil {
		return ""
	}
	for _, a := range agents {
		if a.Enabled {
			return a.Name
		}
	}
	return ""
}

func (s *Server) deliverToChannel(ctx context.Context, ch models.ChannelType, threadID, content string) {
	outbound, ok := s.channels.GetOutbound(ch)
	if !ok {
		return
	}
	if err := outbound.Send(ctx, &models.OutgoingEnvelope{ThreadID: threadID, Content: content}); err != nil {
		s.logger.Warn("channel send failed", "channel", ch, "error", err)
	}
}

// Deliver satisfies scheduler.Deliverer: deliverTo is "channel:thread_id".
func (s *Server) Deliver(ctx context.Context, deliverTo, content string) error {
	ch, threadID := splitDeliverTo(deliverTo)
	if ch == "" {
		return apperror.New(apperror.Config, "malformed deliver_to", nil)
	}
	outbound, ok := s.channels.GetOutbound(models.ChannelType(ch))
	if !ok {
		return apperror.New(apperror.ChannelError, "channel not configured", nil)
	}
	return outbound.Send(ctx, &models.OutgoingEnvelope{ThreadID: threadID, Content: content})
}

func splitDeliverTo(deliverTo string) (channel, threadID string) {
	for i := 0; i < len(deliverTo); i++ {
		if deliverTo[i] == ':' {
			return deliverTo[:i], deliverTo[i+1:]
		}
	}
	return "", ""
}
