// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/playgate/playgate/internal/store"
)

// newMigrateCmd creates the migrate command and its subcommands.
// Running it without a subcommand applies all pending migrations.
func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the embedded schema migrations for the configured
database driver (postgres or mysql).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("MIGRATION_NOT_CONFIRMED").
					Errorf("migrate down drops all data; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm the destructive rollback")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Println(formatVersion(v, dirty))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version without running any migration. Use only
to recover from a dirty state after repairing the database by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateStatus)
		},
	})

	return cmd
}

// withMigrator loads the configuration, opens a migrator for it and runs fn.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(*cobra.Command, Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(store.Driver(cfg.Database.Driver), cfg.Database.DatabaseURL())
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	cmd.Printf("Driver:  %s\n", m.Driver())
	cmd.Printf("Version: %s\n", formatVersion(v, dirty))
	cmd.Print(formatMigrationList("Applied", m.Driver(), applied))
	cmd.Print(formatMigrationList("Pending", m.Driver(), pending))
	return nil
}

func formatVersion(v uint, dirty bool) string {
	if dirty {
		return fmt.Sprintf("%d (dirty)", v)
	}
	return fmt.Sprintf("%d", v)
}

func formatMigrationList(title string, driver store.Driver, versions []uint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(driver, v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		fmt.Fprintf(&b, "  %s\n", name)
	}
	return b.String()
}

// parseForceVersion parses the VERSION argument of migrate force.
// Parsing stops at the first non-digit, so "1.5" is 1.
func parseForceVersion(arg string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(arg, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("arg", arg).Wrap(err)
	}
	return v, nil
}
