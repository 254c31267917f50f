// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/playgate/playgate/internal/config"
	"github.com/playgate/playgate/internal/logging"
)

// serviceName labels every log line.
const serviceName = "playgate"

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Playgate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

// newRootCmd builds the command tree over deps. Nil deps use the defaults.
func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playgate",
		Short: "Playgate - account and session service for game clients",
		Long: `Playgate registers player accounts, verifies credentials and issues
revocable session tokens over a JSON HTTP API backed by PostgreSQL or MySQL.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (YAML)")
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	flags.String("db-driver", "postgres", "database driver (postgres or mysql)")
	flags.String("database-url", "", "database URL or DSN; overrides database.host and friends")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newSessionsCmd(deps))

	return cmd
}

// loadConfig reads the configuration for cmd from all sources.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
	})
}

// setupLogging builds the service logger, installs it as the slog default
// and returns it. Output goes to w, or stderr when w is nil.
func setupLogging(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.SetDefault(serviceName, version, logging.Options{Format: cfg.Format, Level: level}, w), nil
}
