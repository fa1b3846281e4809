// Package agent implements the per-tenant agent turn engine: the phased
// loop that turns one user message into one assistant reply, consulting
// knowledge and memory, dispatching to a provider, and running a bounded
// multi-round tool-calling loop along the way.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/brain"
	"github.com/atlasforge/agentmesh/internal/knowledge"
	"github.com/atlasforge/agentmesh/internal/memory"
	"github.com/atlasforge/agentmesh/internal/observability"
	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/tools"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// maxToolRounds bounds the tool-calling loop; the final round omits tool
// definitions entirely, forcing the model to produce a textual answer.
const maxToolRounds = 3

// Config carries an engine's tunables, all independently overridable per
// tenant/agent.
type Config struct {
	AgentName      string
	SessionID      string
	Model          string
	Temperature    float64
	MaxTokens      int
	ContextLimit   int // in estimated tokens
	AutoSaveMemory bool
}

// Engine runs one agent's turn loop. Its conversation log is the single
// source of truth: providers never see anything that isn't in it.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	provider  *providers.Client
	registry  *tools.Registry
	memory    *memory.Store
	knowledge *knowledge.Store
	brainWS   *brain.Workspace
	dailyLog  *brain.DailyLog
	tracer    *observability.Tracer

	mu           sync.Mutex
	conversation []models.Message
	cache        *PromptCache
	lastStats    ContextStats
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMemory(store *memory.Store) Option       { return func(e *Engine) { e.memory = store } }
func WithKnowledge(store *knowledge.Store) Option { return func(e *Engine) { e.knowledge = store } }
func WithBrain(ws *brain.Workspace, log *brain.DailyLog) Option {
	return func(e *Engine) { e.brainWS = ws; e.dailyLog = log }
}
func WithTracer(tracer *observability.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New builds an Engine around a system prompt (the tenant identity
// prompt, with any brain workspace content appended), a provider
// dispatcher, and a tool registry.
func New(cfg Config, systemPrompt string, provider *providers.Client, registry *tools.Registry, opts ...Option) *Engine {
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 128000
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "default"
	}

	noopTracer, _ := observability.New(observability.Config{ServiceName: "agentmesh-agent"})
	e := &Engine{
		cfg:      cfg,
		logger:   slog.Default(),
		provider: provider,
		registry: registry,
		tracer:   noopTracer,
	}
	for _, opt := range opts {
		opt(e)
	}

	prompt := systemPrompt
	if e.brainWS != nil {
		if ctx := e.brainWS.Assemble(); ctx != "" {
			prompt = fmt.Sprintf("%s\n\n%s", systemPrompt, ctx)
		}
	}
	e.conversation = []models.Message{{Role: models.RoleSystem, Content: prompt, CreatedAt: time.Now().UTC()}}
	e.cache = NewPromptCache(prompt, registry)
	return e
}

func systemPromptHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Stats returns the statistics published by the most recently completed turn.
func (e *Engine) Stats() ContextStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// estimateTokens applies the open, deliberately simple heuristic: one
// token per three characters of content across every message. This
// mirrors the original char-count proxy rather than a real tokenizer.
func estimateTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 3
	}
	return total
}
