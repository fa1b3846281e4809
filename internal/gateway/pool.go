package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/atlasforge/agentmesh/internal/agent"
	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/brain"
	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/tools"
	"github.com/atlasforge/agentmesh/internal/tools/codeexec"
	"github.com/atlasforge/agentmesh/internal/tools/files"
	"github.com/atlasforge/agentmesh/internal/tools/httpclient"
	"github.com/atlasforge/agentmesh/internal/tools/plan"
	"github.com/atlasforge/agentmesh/internal/tools/policy"
	"github.com/atlasforge/agentmesh/internal/tools/shell"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// agentHandle pairs one agent's turn engine with the asynchronous mutex
// that serializes its turns: entering Process acquires this lock,
// guaranteeing FIFO message ordering within the agent while letting
// different agents run concurrently.
type agentHandle struct {
	mu     sync.Mutex
	engine *agent.Engine
}

// AgentPool lazily builds and caches one Engine per named agent. It
// implements scheduler.AgentRunner so the scheduler can dispatch
// agent_prompt tasks back through the same turn engines used by chat.
type AgentPool struct {
	srv *Server

	mu      sync.Mutex
	handles map[string]*agentHandle
}

// NewAgentPool builds an empty pool bound to srv's per-tenant state.
func NewAgentPool(srv *Server) *AgentPool {
	return &AgentPool{srv: srv, handles: make(map[string]*agentHandle)}
}

// Invalidate drops a cached engine so the next call rebuilds it from the
// current agent/provider configuration — used after an agent or provider
// record is updated.
func (p *AgentPool) Invalidate(name string) {
	p.mu.Lock()
	delete(p.handles, name)
	p.mu.Unlock()
}

func (p *AgentPool) handle(ctx context.Context, name string) (*agentHandle, error) {
	p.mu.Lock()
	if h, ok := p.handles[name]; ok {
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	rec, err := p.srv.db.GetAgent(ctx, name)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "agent not found", err)
	}
	if !rec.Enabled {
		return nil, apperror.New(apperror.PolicyDenied, "agent is disabled", nil)
	}

	engine, err := p.srv.buildEngine(ctx, rec)
	if err != nil {
		return nil, err
	}

	h := &agentHandle{engine: engine}
	p.mu.Lock()
	p.handles[name] = h
	p.mu.Unlock()
	return h, nil
}

// RunAgentPrompt satisfies scheduler.AgentRunner: it acquires the named
// agent's mutex and runs one turn against prompt.
func (p *AgentPool) RunAgentPrompt(ctx context.Context, agentName, prompt string) (string, error) {
	h, err := p.handle(ctx, agentName)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Process(ctx, prompt)
}

// buildEngine assembles a fresh turn engine for one stored agent record:
// its provider client, a per-agent tool registry, and the tenant-wide
// memory/knowledge/brain stores.
func (s *Server) buildEngine(ctx context.Context, rec *models.Agent) (*agent.Engine, error) {
	providerRec, err := s.db.GetProvider(ctx, rec.Provider)
	if err != nil {
		return nil, apperror.New(apperror.Config, fmt.Sprintf("unknown provider %q", rec.Provider), err)
	}

	client := providers.NewClient(providers.Config{
		Name:       providerRec.Name,
		BaseURL:    providerRec.BaseURL,
		ChatPath:   providerRec.ChatPath,
		ModelsPath: providerRec.ModelsPath,
		EnvKeys:    providerRec.EnvKeys,
		AuthStyle:  providerRec.AuthStyle,
	}, providerRec.APIKey, "")

	registry := tools.NewRegistry()
	_ = registry.Register(shell.New(policy.Default()))
	_ = registry.Register(httpclient.New())
	_ = registry.Register(files.New(s.dataDir + "/files"))
	_ = registry.Register(codeexec.New())
	_ = registry.Register(plan.New(plan.NewStore()))

	ws := brain.New(s.dataDir + "/brain")
	if err := ws.Initialize(); err != nil {
		s.logger.Warn("brain workspace init failed", "error", err)
	}
	dailyLog := brain.NewDailyLog(ws)

	model := rec.Model
	cfg := agent.Config{
		AgentName:      rec.Name,
		SessionID:      rec.Name,
		Model:          model,
		Temperature:    0.7,
		MaxTokens:      4096,
		AutoSaveMemory: true,
	}

	return agent.New(cfg, rec.SystemPrompt, client, registry,
		agent.WithLogger(s.logger),
		agent.WithMemory(s.memory),
		agent.WithKnowledge(s.knowledge),
		agent.WithBrain(ws, dailyLog),
		agent.WithTracer(s.tracer),
	), nil
}
