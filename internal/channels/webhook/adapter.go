// Package webhook bridges a generic inbound HTTP receiver and outbound
// POST client to the normalized envelope contract the agent turn engine
// consumes. Grounded on the scheduler's webhook action
// (net/http.Client with a bounded context timeout) generalized into a
// full channel adapter with HMAC request signing both ways.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/pkg/models"
)

const signatureHeader = "X-AgentMesh-Signature"

// Config holds the webhook adapter's tunables.
type Config struct {
	// Secret signs and verifies X-AgentMesh-Signature on both directions.
	Secret string
	// OutboundURL is where Send POSTs outgoing envelopes.
	OutboundURL string
	// RequestTimeout bounds outbound POST calls.
	RequestTimeout time.Duration
	Logger         *slog.Logger
	HTTPClient     *http.Client
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
}

// inboundPayload is the JSON body this adapter accepts on ServeHTTP.
type inboundPayload struct {
	ThreadID   string `json:"thread_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	ThreadType string `json:"thread_type"`
}

// Adapter implements channels.Adapter for generic webhooks. It is both an
// http.Handler (mount it on the gateway's per-tenant mux) and an
// OutboundAdapter that POSTs replies to Config.OutboundURL.
type Adapter struct {
	cfg      Config
	messages chan *models.IncomingEnvelope
	logger   *slog.Logger
	health   *channels.BaseHealthAdapter

	mu      sync.Mutex
	started bool
}

// NewAdapter validates cfg and returns an unstarted webhook adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Secret == "" {
		return nil, apperror.New(apperror.Config, "webhook: secret is required", nil)
	}
	cfg.applyDefaults()
	return &Adapter{
		cfg:      cfg,
		messages: make(chan *models.IncomingEnvelope, 100),
		logger:   cfg.Logger.With("adapter", "webhook"),
		health:   channels.NewBaseHealthAdapter(),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelWebhook }

// Start marks the adapter ready to receive. Unlike the polling/socket
// adapters there's no background connection: delivery happens via
// ServeHTTP, which the gateway mounts on its own listener.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	a.health.SetStatus(true, "")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false
	close(a.messages)
	a.health.SetStatus(false, "")
	return nil
}

// ServeHTTP verifies the request's HMAC-SHA256 signature, parses the
// envelope payload, and enqueues it for the agent turn engine.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !a.verifySignature(r.Header.Get(signatureHeader), body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload inboundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.ThreadID == "" || payload.Content == "" {
		http.Error(w, "thread_id and content are required", http.StatusBadRequest)
		return
	}

	threadType := models.ThreadDirect
	if payload.ThreadType == string(models.ThreadGroup) {
		threadType = models.ThreadGroup
	}
	env := &models.IncomingEnvelope{
		Channel:    models.ChannelWebhook,
		ThreadID:   payload.ThreadID,
		SenderID:   payload.SenderID,
		SenderName: payload.SenderName,
		Content:    payload.Content,
		ThreadType: threadType,
		Timestamp:  time.Now().UTC(),
	}
	a.health.UpdateLastPing()
	select {
	case a.messages <- env:
		w.WriteHeader(http.StatusAccepted)
	default:
		a.logger.Warn("messages channel full, dropping webhook delivery", "thread_id", payload.ThreadID)
		http.Error(w, "backlog full", http.StatusServiceUnavailable)
	}
}

func (a *Adapter) verifySignature(header string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

// Send POSTs an outgoing envelope to Config.OutboundURL, signed the same
// way inbound deliveries are verified.
func (a *Adapter) Send(ctx context.Context, msg *models.OutgoingEnvelope) error {
	if a.cfg.OutboundURL == "" {
		return apperror.New(apperror.Config, "webhook: no outbound url configured", nil)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return apperror.New(apperror.Internal, "webhook: failed to encode envelope", err)
	}

	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.cfg.OutboundURL, bytes.NewReader(body))
	if err != nil {
		return apperror.New(apperror.Internal, "webhook: failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, sig)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return apperror.New(apperror.ChannelError, "webhook: delivery failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperror.New(apperror.ChannelError, fmt.Sprintf("webhook: delivery returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (a *Adapter) Messages() <-chan *models.IncomingEnvelope { return a.messages }

func (a *Adapter) Status() channels.Status { return a.health.Status() }

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return channels.HealthStatus{LastCheck: start, Message: "adapter not started"}
	}
	return channels.HealthStatus{Healthy: true, LastCheck: start, Latency: time.Since(start), Message: "healthy"}
}
