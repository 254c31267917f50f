// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/playgate/playgate/internal/auth"
	"github.com/playgate/playgate/internal/auth/cache"
	"github.com/playgate/playgate/internal/config"
	"github.com/playgate/playgate/internal/observability"
	"github.com/playgate/playgate/internal/web"
	"github.com/playgate/playgate/pkg/errutil"
)

// readinessTimeout bounds the database ping behind the readiness probe.
const readinessTimeout = 2 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the account HTTP API together with the metrics and health
probe listener. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, deps)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("redis-addr", "", "redis address for the session cache (empty = disabled)")
	cmd.Flags().Duration("session-ttl", auth.DefaultSessionLifetime, "session lifetime")
	cmd.Flags().Duration("prune-every", time.Hour, "interval between expired session sweeps (0 = disabled)")
	cmd.Flags().Int("login-limit", 10, "login attempts per client IP per minute (0 = unlimited)")

	return cmd
}

// runServe runs the service until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, deps *Deps) error {
	deps = deps.withDefaults()

	logger, err := setupLogging(cfg.Log, nil)
	if err != nil {
		return err
	}

	logger.Info("starting playgate",
		"addr", cfg.Server.Addr,
		"driver", cfg.Database.Driver,
		"version", version)

	backend, err := deps.BackendOpener(ctx, cfg.Database)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	credentials := backend.Store
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return oops.Code("SERVE_CACHE_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		sessionCache, err := cache.New(backend.Store, client,
			cache.WithLogger(logger),
			cache.WithRevocationTTL(cfg.Session.Lifetime))
		if err != nil {
			return err
		}
		credentials = sessionCache
		logger.Info("session cache enabled", "addr", cfg.Redis.Addr)
	}

	tokens, err := auth.NewSessionTokenGenerator(credentials,
		auth.WithCollisionObserver(observability.RecordTokenCollision))
	if err != nil {
		return err
	}
	svc, err := auth.NewAuthService(credentials, auth.NewArgon2idHasher(), tokens,
		auth.WithLogger(logger),
		auth.WithSessionLifetime(cfg.Session.Lifetime))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
			defer cancel()
			return backend.Ping(pingCtx) == nil
		})
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())

		g.Go(func() error {
			return watchObservability(gctx, obsServer, obsErrCh)
		})
	}

	if cfg.Session.Prune > 0 {
		g.Go(func() error {
			pruneLoop(gctx, svc, cfg.Session.Prune, metrics, logger)
			return nil
		})
	}

	router := web.NewRouter(web.RouterParams{
		Service:    svc,
		Logger:     logger,
		Metrics:    metrics,
		LoginLimit: cfg.RateLimit.Login,
	})
	apiServer := web.NewServer(cfg.Server.Addr, router, logger)
	g.Go(func() error {
		return apiServer.ListenAndServe(gctx)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// watchObservability stops the observability server when ctx ends and
// reports a server failure as an error.
func watchObservability(ctx context.Context, srv ObservabilityServer, errCh <-chan error) error {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), web.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// pruneLoop deletes expired sessions every interval until ctx ends.
// Failures are logged and retried on the next tick.
func pruneLoop(ctx context.Context, svc *auth.Service, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PruneExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errutil.LogErrorContext(ctx, logger, "session prune failed", err)
				}
				continue
			}
			if metrics != nil {
				metrics.SessionsPrunedTotal.Add(float64(n))
			}
		}
	}
}
