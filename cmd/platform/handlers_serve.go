package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/orchestrator"
	"github.com/atlasforge/agentmesh/internal/platform"
	"github.com/atlasforge/agentmesh/internal/storage"
)

func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	slog.Info("starting agentmesh platform", "version", version, "commit", commit, "config", configPath)

	loader, err := config.NewLoader[config.PlatformConfig](configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := loader.Current()

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set")
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "platform.db"
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open platform database: %w", err)
	}
	defer store.Close()

	orch := orchestrator.New(store, cfg.Orchestrator, orchestrator.WithLogger(slog.Default()))
	srv := platform.New(cfg, store, orch, platform.WithLogger(slog.Default()))

	stop, err := loader.Watch(func(config.PlatformConfig) {
		slog.Info("platform config changed on disk; restart to apply")
	}, func(err error) {
		slog.Warn("config reload failed", "error", err)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "error", err)
	} else {
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	slog.Info("agentmesh platform started", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
		if err := <-errCh; err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("agentmesh platform stopped gracefully")
	return nil
}
