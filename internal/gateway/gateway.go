// Package gateway implements the per-tenant HTTP server: the agent pool,
// the provider/agent/channel/scheduler/knowledge/workflow CRUD surface,
// and the streaming chat WebSocket. One gateway process serves exactly
// one tenant.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/gatewaydb"
	"github.com/atlasforge/agentmesh/internal/knowledge"
	"github.com/atlasforge/agentmesh/internal/memory"
	"github.com/atlasforge/agentmesh/internal/observability"
	"github.com/atlasforge/agentmesh/internal/scheduler"
	"github.com/atlasforge/agentmesh/internal/workflow"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Server is one tenant's gateway: every piece of per-tenant state lives
// here, created once at startup and passed into every handler.
type Server struct {
	cfg     config.GatewayConfig
	dataDir string
	logger  *slog.Logger

	db        *gatewaydb.DB
	memory    *memory.Store
	knowledge *knowledge.Store

	schedulerStore  *scheduler.Store
	schedulerEngine *scheduler.Engine
	workflowEngine  *workflow.Engine
	channels        *channels.Registry

	pool *AgentPool

	tracer         *observability.Tracer
	tracerShutdown func(context.Context) error

	pairingCode string

	modelCacheMu sync.Mutex
	modelCache   map[string]modelCacheEntry

	httpServer   *http.Server
	httpListener net.Listener
	startTime    time.Time
}

// modelCacheEntry holds the last successful live model listing for one
// provider, so /providers/{name}/models doesn't re-fetch on every call.
type modelCacheEntry struct {
	fetchedAt time.Time
	models    []models.ModelInfo
}

const modelCacheTTL = 5 * time.Minute

// Option configures a Server at construction.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wires together every per-tenant subsystem. dataDir is the tenant's
// on-disk directory (config, DBs, pairing file, brain workspace).
func New(cfg config.GatewayConfig, dataDir string, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		dataDir:   dataDir,
		logger:    slog.Default(),
		channels:   channels.NewRegistry(),
		startTime:  time.Now(),
		modelCache: make(map[string]modelCacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = dataDir + "/gateway.db"
	}
	db, err := gatewaydb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open gateway db: %w", err)
	}
	s.db = db

	tracer, shutdown := observability.New(observability.Config{
		ServiceName:  "agentmesh-gateway",
		Endpoint:     cfg.Observability.Endpoint,
		SamplingRate: cfg.Observability.SamplingRate,
		Insecure:     cfg.Observability.Insecure,
	})
	s.tracer = tracer
	s.tracerShutdown = shutdown

	memStore, err := memory.Open(dataDir + "/memory.db")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s.memory = memStore

	knowStore, err := knowledge.Open(dataDir + "/knowledge.db")
	if err != nil {
		db.Close()
		memStore.Close()
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	s.knowledge = knowStore

	schedStore, err := scheduler.Open(dataDir + "/scheduler.db")
	if err != nil {
		db.Close()
		memStore.Close()
		knowStore.Close()
		return nil, fmt.Errorf("open scheduler db: %w", err)
	}
	s.schedulerStore = schedStore

	s.pool = NewAgentPool(s)

	interval := cfg.Scheduler.TickInterval
	s.schedulerEngine = scheduler.NewEngine(schedStore,
		scheduler.WithLogger(s.logger),
		scheduler.WithTickInterval(interval),
		scheduler.WithAgentRunner(s.pool),
		scheduler.WithDeliverer(s),
	)

	rules, err := db.ListWorkflowRules(context.Background())
	if err != nil {
		s.logger.Warn("load workflow rules failed", "error", err)
	}
	s.workflowEngine = workflow.New(rules, s.logger)

	if code, err := os.ReadFile(dataDir + "/.pairing_code"); err == nil {
		s.pairingCode = strings.TrimSpace(string(code))
	}

	if err := s.loadChannels(context.Background()); err != nil {
		s.logger.Warn("load channel instances failed", "error", err)
	}

	return s, nil
}

// Close releases every per-tenant resource.
func (s *Server) Close() error {
	if s.schedulerEngine != nil {
		s.schedulerEngine.Stop()
	}
	_ = s.channels.StopAll(context.Background())
	if s.schedulerStore != nil {
		s.schedulerStore.Close()
	}
	if s.knowledge != nil {
		s.knowledge.Close()
	}
	if s.memory != nil {
		s.memory.Close()
	}
	if s.tracerShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracerShutdown(shutdownCtx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run starts the scheduler tick loop, channel adapters, and the HTTP
// server, blocking until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	go s.schedulerEngine.Run(ctx)
	if err := s.channels.StartAll(ctx); err != nil {
		s.logger.Warn("channel start failed", "error", err)
	}
	go s.consumeInbound(ctx)

	if err := s.startHTTPServer(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	s.stopHTTPServer()
	return nil
}

func (s *Server) startHTTPServer(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	if s.cfg.Server.Host == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	s.logger.Info("gateway http server started", "addr", addr)
	return nil
}

func (s *Server) stopHTTPServer() {
	if s.httpServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
	}
}
