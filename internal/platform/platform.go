// Package platform implements the admin HTTP plane: tenant lifecycle,
// user management, credentials, and routing, fronting the orchestrator
// and the platform DB. One platform process runs per host.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/infra/workerpool"
	"github.com/atlasforge/agentmesh/internal/observability"
	"github.com/atlasforge/agentmesh/internal/orchestrator"
	"github.com/atlasforge/agentmesh/internal/ratelimit"
	"github.com/atlasforge/agentmesh/internal/storage"
)

// bcryptPoolSize bounds how many concurrent bcrypt hash/compare calls run
// across all login/register/password-reset requests, so a credential
// burst can't starve the HTTP server's goroutines with CPU-bound work.
const bcryptPoolSize = 8

// Server is the singleton admin plane: every tenant mutation and every
// user/auth operation flows through here.
type Server struct {
	cfg    config.PlatformConfig
	logger *slog.Logger

	store storage.Store
	orch  *orchestrator.Manager
	jwt   *auth.JWTService

	loginLimiter    *ratelimit.Window
	registerLimiter *ratelimit.Window
	resetLimiter    *ratelimit.Window

	tracer         *observability.Tracer
	tracerShutdown func(context.Context) error

	blockingPool *workerpool.Pool

	httpServer   *http.Server
	httpListener net.Listener
	startTime    time.Time
}

// Option configures a Server at construction.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wires the admin plane around an already-open platform store and
// orchestrator. Both are process-singletons created at startup and
// passed in, per spec §9's guidance against hidden globals.
func New(cfg config.PlatformConfig, store storage.Store, orch *orchestrator.Manager, opts ...Option) *Server {
	expiry := cfg.Auth.TokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	tracer, shutdown := observability.New(observability.Config{
		ServiceName:  "agentmesh-platform",
		Endpoint:     cfg.Observability.Endpoint,
		SamplingRate: cfg.Observability.SamplingRate,
		Insecure:     cfg.Observability.Insecure,
	})
	s := &Server{
		cfg:             cfg,
		logger:          slog.Default(),
		store:           store,
		orch:            orch,
		jwt:             auth.NewJWTService(cfg.Auth.JWTSecret, expiry),
		loginLimiter:    ratelimit.NewWindow(5, 5*time.Minute),
		registerLimiter: ratelimit.NewWindow(3, 10*time.Minute),
		resetLimiter:    ratelimit.NewWindow(3, 15*time.Minute),
		tracer:          tracer,
		tracerShutdown:  shutdown,
		blockingPool:    workerpool.New(bcryptPoolSize),
		startTime:       time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.startHTTPServer(); err != nil {
		return err
	}
	<-ctx.Done()
	s.stopHTTPServer()
	return nil
}

func (s *Server) startHTTPServer() error {
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
			s.logger.Error("platform http server error", "error", err)
		}
	}()
	s.logger.Info("platform http server started", "addr", addr)
	return nil
}

func (s *Server) stopHTTPServer() {
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("platform http server shutdown error", "error", err)
		}
	}
	if s.tracerShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracerShutdown(shutdownCtx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}
}
