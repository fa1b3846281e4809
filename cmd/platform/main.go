// Package main provides the CLI entry point for the agentmesh platform
// binary: the singleton admin plane that provisions and supervises every
// tenant gateway on the host.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
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
	cmd := &cobra.Command{
		Use:   "agentmesh-platform",
		Short: "agentmesh platform: the multi-tenant admin plane",
		Version: version,
	}
	cmd.AddCommand(buildServeCmd())
	return cmd
}
