// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/playgate/playgate/internal/auth"
)

// newSessionsCmd creates the sessions command group.
func newSessionsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session housekeeping",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Long: `Delete every session whose expiry has passed. Revoked sessions that
have not yet expired are kept so their tokens keep failing as revoked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd, deps)
		},
	})

	return cmd
}

func runPrune(cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := deps.BackendOpener(ctx, cfg.Database)
	if err != nil {
		return oops.Code("PRUNE_STORE_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()

	tokens, err := auth.NewSessionTokenGenerator(backend.Store)
	if err != nil {
		return err
	}
	svc, err := auth.NewAuthService(backend.Store, auth.NewArgon2idHasher(), tokens, auth.WithLogger(logger))
	if err != nil {
		return err
	}

	n, err := svc.PruneExpiredSessions(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired session(s)\n", n)
	return nil
}
