// Package slack bridges a Slack Socket Mode connection to the normalized
// envelope contract the agent turn engine consumes.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/time/rate"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Config holds the Slack adapter's tunables.
type Config struct {
	BotToken  string // xoxb- token for Web API calls
	AppToken  string // xapp- token for Socket Mode
	RateLimit rate.Limit
	RateBurst int
	Logger    *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.RateLimit == 0 {
		c.RateLimit = 1
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Adapter implements channels.Adapter for Slack, via Socket Mode.
type Adapter struct {
	cfg          Config
	client       *slack.Client
	socketClient *socketmode.Client
	messages     chan *models.IncomingEnvelope
	limiter      *rate.Limiter
	logger       *slog.Logger
	health       *channels.BaseHealthAdapter

	botUserIDMu sync.RWMutex
	botUserID   string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter validates cfg and returns an unstarted Slack adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, apperror.New(apperror.Config, "slack: bot token and app token are required", nil)
	}
	cfg.applyDefaults()

	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socketClient := socketmode.New(client, socketmode.OptionDebug(false))

	return &Adapter{
		cfg:          cfg,
		client:       client,
		socketClient: socketClient,
		messages:     make(chan *models.IncomingEnvelope, 100),
		limiter:      rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:       cfg.Logger.With("adapter", "slack"),
		health:       channels.NewBaseHealthAdapter(),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelSlack }

// Start authenticates, then runs the Socket Mode event loop in background goroutines.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	auth, err := a.client.AuthTest()
	if err != nil {
		a.health.SetStatus(false, err.Error())
		return apperror.New(apperror.ChannelError, "slack: auth test failed", err)
	}
	a.botUserIDMu.Lock()
	a.botUserID = auth.UserID
	a.botUserIDMu.Unlock()

	a.wg.Add(2)
	go a.handleEvents(runCtx)
	go func() {
		defer a.wg.Done()
		if err := a.socketClient.Run(); err != nil {
			a.health.SetStatus(false, err.Error())
			a.logger.Error("socket mode run exited", "error", err)
		}
	}()

	a.health.SetStatus(true, "")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	close(a.messages)
	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
		a.health.SetStatus(false, "")
		return nil
	case <-ctx.Done():
		return apperror.New(apperror.Timeout, "slack: stop timed out", ctx.Err())
	}
}

func (a *Adapter) handleEvents(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-a.socketClient.Events:
			if !ok {
				return
			}
			a.health.UpdateLastPing()
			switch event.Type {
			case socketmode.EventTypeEventsAPI:
				a.handleEventsAPI(event)
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				if event.Request != nil {
					a.socketClient.Ack(*event.Request)
				}
			}
		}
	}
}

func (a *Adapter) handleEventsAPI(event socketmode.Event) {
	apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		if event.Request != nil {
			a.socketClient.Ack(*event.Request)
		}
		return
	}
	if event.Request != nil {
		a.socketClient.Ack(*event.Request)
	}
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		a.handleMessage(ev.User, ev.Text, ev.Channel, ev.TimeStamp, ev.ThreadTimeStamp, "")
	case *slackevents.MessageEvent:
		if ev.BotID != "" {
			return
		}
		if ev.SubType != "" && ev.SubType != "file_share" {
			return
		}
		a.handleMessage(ev.User, ev.Text, ev.Channel, ev.TimeStamp, ev.ThreadTimeStamp, ev.SubType)
	}
}

func (a *Adapter) handleMessage(userID, text, channel, ts, threadTS, subType string) {
	a.botUserIDMu.RLock()
	botUserID := a.botUserID
	a.botUserIDMu.RUnlock()

	isDM := strings.HasPrefix(channel, "D")
	isMention := botUserID != "" && strings.Contains(text, fmt.Sprintf("<@%s>", botUserID))
	if !isDM && !isMention && threadTS == "" {
		return
	}

	threadType := models.ThreadGroup
	if isDM {
		threadType = models.ThreadDirect
	}
	threadID := channel
	if threadTS != "" {
		threadID = channel + ":" + threadTS
	}

	env := &models.IncomingEnvelope{
		Channel:    models.ChannelSlack,
		ThreadID:   threadID,
		SenderID:   userID,
		Content:    stripMentions(text),
		ThreadType: threadType,
		Timestamp:  time.Now().UTC(),
	}
	select {
	case a.messages <- env:
	default:
		a.logger.Warn("messages channel full, dropping message", "channel", channel)
	}
}

func stripMentions(text string) string {
	for strings.Contains(text, "<@") {
		start := strings.Index(text, "<@")
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}
	return strings.TrimSpace(text)
}

// Send posts a reply to the Slack channel (optionally thread) encoded in msg.ThreadID.
func (a *Adapter) Send(ctx context.Context, msg *models.OutgoingEnvelope) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.Timeout, "slack: rate limit wait cancelled", err)
	}
	channel, threadTS, _ := strings.Cut(msg.ThreadID, ":")
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := a.client.PostMessageContext(ctx, channel, opts...); err != nil {
		return apperror.New(apperror.ChannelError, "slack: send failed", err)
	}
	return nil
}

func (a *Adapter) Messages() <-chan *models.IncomingEnvelope { return a.messages }

func (a *Adapter) Status() channels.Status { return a.health.Status() }

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	_, err := a.client.AuthTestContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return channels.HealthStatus{LastCheck: start, Latency: latency, Message: err.Error()}
	}
	return channels.HealthStatus{Healthy: true, LastCheck: start, Latency: latency, Message: "healthy"}
}
