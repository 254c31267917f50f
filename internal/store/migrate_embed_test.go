// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package store

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	for _, driver := range []Driver{DriverPostgres, DriverMySQL} {
		t.Run(string(driver), func(t *testing.T) {
			entries, err := migrationsFS.ReadDir(migrationsDir(driver))
			require.NoError(t, err, "should read embedded migrations directory")

			fileNames := make(map[string]bool)
			for _, entry := range entries {
				fileNames[entry.Name()] = true
				assert.True(t, pattern.MatchString(entry.Name()),
					"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
			}

			for _, expected := range []string{
				"000001_create_users.up.sql",
				"000001_create_users.down.sql",
				"000002_create_user_sessions.up.sql",
				"000002_create_user_sessions.down.sql",
			} {
				assert.True(t, fileNames[expected], "should contain %s", expected)
			}
		})
	}
}

// Every up migration needs a matching down migration.
func TestMigrationsFS_UpDownPairs(t *testing.T) {
	for _, driver := range []Driver{DriverPostgres, DriverMySQL} {
		entries, err := fs.ReadDir(migrationsFS, migrationsDir(driver))
		require.NoError(t, err)

		names := make(map[string]bool, len(entries))
		for _, entry := range entries {
			names[entry.Name()] = true
		}
		for name := range names {
			if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
				assert.True(t, names[base+".down.sql"], "%s/%s has no down migration", driver, name)
			}
		}
	}
}

// The store maps these constraint names to domain errors, so both dialects
// must declare them.
func TestMigrationsFS_ConstraintNames(t *testing.T) {
	for _, driver := range []Driver{DriverPostgres, DriverMySQL} {
		users, err := fs.ReadFile(migrationsFS, migrationsDir(driver)+"/000001_create_users.up.sql")
		require.NoError(t, err)
		sessions, err := fs.ReadFile(migrationsFS, migrationsDir(driver)+"/000002_create_user_sessions.up.sql")
		require.NoError(t, err)

		assert.Contains(t, string(users), "users_username_key", driver)
		assert.Contains(t, string(users), "users_email_key", driver)
		assert.Contains(t, string(sessions), "user_sessions_token_hash_key", driver)
		assert.Contains(t, string(sessions), "user_sessions_user_id_fkey", driver)
	}
}
