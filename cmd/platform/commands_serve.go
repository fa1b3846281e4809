package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "platform.yaml"

// resolveConfigPath prefers an explicit --config flag, then the
// AGENTMESH_PLATFORM_CONFIG environment variable, then the working
// directory default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" && flagValue != defaultConfigPath {
		return flagValue
	}
	if env := os.Getenv("AGENTMESH_PLATFORM_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentmesh platform admin server",
		Long: `Start the agentmesh platform server.

The server will:
1. Load configuration from the specified file
2. Open the platform database
3. Start the tenant orchestrator
4. Serve the admin HTTP API

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd, configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}
