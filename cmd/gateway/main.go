// Package main provides the CLI entry point for the agentmesh gateway
// binary: one process per tenant, spawned and supervised by the platform
// orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/gateway"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "agentmesh-gateway",
		Short:   "agentmesh gateway: a single tenant's agent process",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the tenant's YAML configuration file")
	cmd.MarkFlagRequired("config")
	return cmd
}

// run loads the tenant config file the orchestrator wrote, opens the
// per-tenant gateway server, and blocks until SIGTERM arrives — the
// signal the orchestrator sends on stop.
func run(ctx context.Context, configPath string) error {
	slog.Info("starting agentmesh gateway", "version", version, "commit", commit, "config", configPath)

	loader, err := config.NewLoader[config.GatewayConfig](configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := loader.Current()
	dataDir := filepath.Dir(configPath)

	srv, err := gateway.New(cfg, dataDir, gateway.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("initialize gateway: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("agentmesh gateway started", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("gateway run: %w", err)
	}
	slog.Info("agentmesh gateway stopped gracefully")
	return nil
}
