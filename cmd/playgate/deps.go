// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package main

import (
	"context"

	"github.com/playgate/playgate/internal/auth"
	"github.com/playgate/playgate/internal/auth/mysql"
	"github.com/playgate/playgate/internal/auth/postgres"
	"github.com/playgate/playgate/internal/config"
	"github.com/playgate/playgate/internal/observability"
	"github.com/playgate/playgate/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// BackendOpener connects to the configured database.
	// Default: openBackend
	BackendOpener func(ctx context.Context, db config.DatabaseConfig) (*Backend, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(driver store.Driver, databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.BackendOpener == nil {
		out.BackendOpener = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(driver store.Driver, databaseURL string) (Migrator, error) {
			return store.NewMigrator(driver, databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	return &out
}

// Backend is an open credential store with its connection lifecycle.
type Backend struct {
	Store auth.CredentialStore
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Driver() store.Driver
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// openBackend connects to the database named by db.
func openBackend(ctx context.Context, db config.DatabaseConfig) (*Backend, error) {
	driver := store.Driver(db.Driver)
	if err := driver.Validate(); err != nil {
		return nil, err
	}

	switch driver {
	case store.DriverMySQL:
		sqlDB, err := store.OpenMySQL(ctx, db.DatabaseURL())
		if err != nil {
			return nil, err
		}
		return &Backend{
			Store: mysql.NewCredentialStore(sqlDB),
			Ping:  sqlDB.PingContext,
			Close: func() { _ = sqlDB.Close() },
		}, nil
	default:
		pool, err := store.OpenPostgres(ctx, db.DatabaseURL())
		if err != nil {
			return nil, err
		}
		return &Backend{
			Store: postgres.NewCredentialStore(pool),
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil
	}
}
