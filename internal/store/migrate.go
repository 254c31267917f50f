// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register mysql and pgx/v5 database drivers for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// Cached migration versions per driver - computed once since embedded FS is immutable.
var (
	cachedVersionsMu sync.Mutex
	cachedVersions   = map[Driver][]uint{}
)

// migrateIface abstracts golang-migrate for testing. The real golang-migrate
// library requires a database connection, making unit tests slow and brittle.
// This interface allows mocking migration operations without a database.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator wraps golang-migrate for database schema management.
type Migrator struct {
	m      migrateIface
	driver Driver
}

// migrationsDir returns the embedded directory holding driver's migrations.
func migrationsDir(driver Driver) string {
	return path.Join("migrations", string(driver))
}

// NewMigrator creates a new Migrator for the given driver.
//
// For postgres, databaseURL is a postgres:// or pgx5:// URL; postgres:// is
// converted to pgx5:// for golang-migrate. For mysql, databaseURL is a
// go-sql-driver DSN, optionally prefixed with mysql://.
func NewMigrator(driver Driver, databaseURL string) (*Migrator, error) {
	if err := driver.Validate(); err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, migrationsDir(driver))
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(driver, databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // cleanup for embedded FS; init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").
			With("operation", "initialize migrator").
			With("driver", string(driver)).
			Wrap(err)
	}

	return &Migrator{m: m, driver: driver}, nil
}

// MigrateURL converts a connection string into the URL form golang-migrate
// expects for driver.
func MigrateURL(driver Driver, databaseURL string) string {
	switch driver {
	case DriverMySQL:
		dsn := strings.TrimPrefix(databaseURL, "mysql://")
		if !strings.Contains(dsn, "multiStatements=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "multiStatements=true"
		}
		return "mysql://" + dsn
	default:
		if rest, found := strings.CutPrefix(databaseURL, "postgres://"); found {
			return "pgx5://" + rest
		}
		if rest, found := strings.CutPrefix(databaseURL, "postgresql://"); found {
			return "pgx5://" + rest
		}
		return databaseURL
	}
}

// Driver returns the database driver the migrator targets.
func (m *Migrator) Driver() Driver {
	return m.driver
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations to version 0, effectively removing all schema objects.
// WARNING: This is a destructive operation that drops all tables and data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only for recovering from a dirty state after manually fixing the database.
// Negative versions are rejected with INVALID_VERSION.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases resources.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil && dbErr != nil {
		// Both failed - combine errors so neither is lost in logs
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	}
	if srcErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	}
	if dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// allMigrationVersions returns the sorted migration versions embedded for driver.
// Returns a copy of the cached slice to prevent callers from mutating the cache.
func allMigrationVersions(driver Driver) ([]uint, error) {
	cachedVersionsMu.Lock()
	defer cachedVersionsMu.Unlock()

	versions, ok := cachedVersions[driver]
	if !ok {
		var err error
		versions, err = loadMigrationVersions(driver)
		if err != nil {
			return nil, err
		}
		cachedVersions[driver] = versions
	}

	result := make([]uint, len(versions))
	copy(result, versions)
	return result, nil
}

// loadMigrationVersions reads the embedded migrations directory and parses version numbers.
// Malformed filenames are logged and skipped; TestMigrationsFS_EmbeddedFiles
// guards the naming pattern.
func loadMigrationVersions(driver Driver) ([]uint, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir(driver))
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	versionSet := make(map[uint]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("migration file name doesn't match expected format, skipping",
				"filename", name,
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		versionSet[version] = struct{}{}
	}

	versions := make([]uint, 0, len(versionSet))
	for v := range versionSet {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// MigrationName returns the name of a migration by version number, in the
// form NNNNNN_name. An unknown version returns ("", nil).
func MigrationName(driver Driver, version uint) (string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir(driver))
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	prefix := fmt.Sprintf("%06d_", version)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".up.sql") {
			return strings.TrimSuffix(name, ".up.sql"), nil
		}
	}
	return "", nil
}

// PendingMigrations returns the versions Up would apply, in ascending order.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	allVersions, err := allMigrationVersions(m.driver)
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	var pending []uint
	for _, v := range allVersions {
		if v > currentVersion {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// AppliedMigrations returns the versions already applied, in ascending order.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	if currentVersion == 0 {
		return nil, nil
	}

	allVersions, err := allMigrationVersions(m.driver)
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	var applied []uint
	for _, v := range allVersions {
		if v <= currentVersion {
			applied = append(applied, v)
		}
	}
	return applied, nil
}
