// Package telegram bridges Telegram's long-polling bot API to the
// normalized envelope contract the agent turn engine consumes.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Config holds the long-polling Telegram adapter's tunables.
type Config struct {
	Token      string
	RateLimit  rate.Limit // messages per second sent to the Telegram API
	RateBurst  int
	Logger     *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.RateLimit == 0 {
		c.RateLimit = 25
	}
	if c.RateBurst == 0 {
		c.RateBurst = 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Adapter implements channels.Adapter for Telegram, in long-polling mode.
type Adapter struct {
	cfg      Config
	bot      *tgbot.Bot
	messages chan *models.IncomingEnvelope
	limiter  *rate.Limiter
	logger   *slog.Logger
	health   *channels.BaseHealthAdapter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter validates cfg and returns an unstarted Telegram adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, apperror.New(apperror.Config, "telegram: token is required", nil)
	}
	cfg.applyDefaults()
	return &Adapter{
		cfg:      cfg,
		messages: make(chan *models.IncomingEnvelope, 100),
		limiter:  rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:   cfg.Logger.With("adapter", "telegram"),
		health:   channels.NewBaseHealthAdapter(),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelTelegram }

// Start connects the bot and begins long-polling in a background goroutine.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	b, err := tgbot.New(a.cfg.Token)
	if err != nil {
		a.health.SetStatus(false, err.Error())
		return apperror.Newf(apperror.ChannelError, err, "telegram: failed to create bot")
	}
	a.bot = b
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, a.handleUpdate)

	a.health.SetStatus(true, "")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.messages)
		b.Start(runCtx)
		a.health.SetStatus(false, "")
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apperror.New(apperror.Timeout, "telegram: stop timed out", ctx.Err())
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	env := &models.IncomingEnvelope{
		Channel:    models.ChannelTelegram,
		ThreadID:   strconv.FormatInt(msg.Chat.ID, 10),
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		Content:    msg.Text,
		ThreadType: threadTypeFor(msg.Chat.Type),
		Timestamp:  time.Unix(int64(msg.Date), 0),
	}
	a.health.UpdateLastPing()
	select {
	case a.messages <- env:
	case <-ctx.Done():
	default:
		a.logger.Warn("messages channel full, dropping update", "chat_id", msg.Chat.ID)
	}
}

func threadTypeFor(chatType tgmodels.ChatType) models.ThreadType {
	if strings.EqualFold(string(chatType), "private") {
		return models.ThreadDirect
	}
	return models.ThreadGroup
}

// Send delivers a reply to the Telegram chat identified by msg.ThreadID.
func (a *Adapter) Send(ctx context.Context, msg *models.OutgoingEnvelope) error {
	if a.bot == nil {
		return apperror.New(apperror.Internal, "telegram: adapter not started", nil)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.Timeout, "telegram: rate limit wait cancelled", err)
	}
	chatID, err := strconv.ParseInt(msg.ThreadID, 10, 64)
	if err != nil {
		return apperror.Newf(apperror.ChannelError, err, "telegram: invalid thread id %q", msg.ThreadID)
	}
	_, err = a.bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: msg.Content})
	if err != nil {
		return apperror.New(apperror.ChannelError, fmt.Sprintf("telegram: send to chat %d failed", chatID), err)
	}
	return nil
}

func (a *Adapter) Messages() <-chan *models.IncomingEnvelope { return a.messages }

func (a *Adapter) Status() channels.Status { return a.health.Status() }

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	if a.bot == nil {
		return channels.HealthStatus{LastCheck: start, Message: "bot not initialized"}
	}
	_, err := a.bot.GetMe(ctx)
	latency := time.Since(start)
	if err != nil {
		return channels.HealthStatus{LastCheck: start, Latency: latency, Message: err.Error()}
	}
	return channels.HealthStatus{Healthy: true, LastCheck: start, Latency: latency, Message: "healthy"}
}
