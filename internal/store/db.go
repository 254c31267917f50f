// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package store opens database connections and manages schema migrations.
package store

import (
	"context"

	// Register the mysql driver with database/sql.
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"
)

// Driver names a supported database.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Validate rejects unsupported drivers.
func (d Driver) Validate() error {
	switch d {
	case DriverPostgres, DriverMySQL:
		return nil
	default:
		return oops.Code("STORE_UNKNOWN_DRIVER").
			With("driver", string(d)).
			Errorf("unsupported database driver %q", string(d))
	}
}

// OpenPostgres creates a pgx pool and verifies connectivity.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("driver", string(DriverPostgres)).
			Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_PING_FAILED").
			With("driver", string(DriverPostgres)).
			Wrap(err)
	}
	return pool, nil
}

// OpenMySQL opens a MySQL connection pool from a go-sql-driver DSN and
// verifies connectivity.
func OpenMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("driver", string(DriverMySQL)).
			Wrap(err)
	}
	return db, nil
}
