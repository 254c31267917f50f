// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package mysql implements auth.CredentialStore on MySQL using sqlx.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// MySQL server error numbers mapped by the store.
const (
	errDupEntry         = 1062
	errNoReferencedRow2 = 1452
)

// Key names created by the mysql migrations. MySQL 8 reports duplicate keys
// as "<table>.<key>", so matching is by substring.
const (
	keyUsername  = "users_username_key"
	keyEmail     = "users_email_key"
	keyTokenHash = "user_sessions_token_hash_key"
)

// DB is the subset of *sqlx.DB used by the store.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

// CredentialStore implements auth.CredentialStore using MySQL.
type CredentialStore struct {
	db DB
}

// NewCredentialStore creates a new CredentialStore on db.
func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// classifyMySQLError maps driver errors onto the auth error taxonomy.
func classifyMySQLError(code, operation string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch {
		case myErr.Number == errDupEntry && strings.Contains(myErr.Message, keyUsername):
			return oops.Code("STORE_DUPLICATE_USERNAME").With("operation", operation).Wrap(auth.ErrDuplicateUsername)
		case myErr.Number == errDupEntry && strings.Contains(myErr.Message, keyEmail):
			return oops.Code("STORE_DUPLICATE_EMAIL").With("operation", operation).Wrap(auth.ErrDuplicateEmail)
		case myErr.Number == errDupEntry && strings.Contains(myErr.Message, keyTokenHash):
			return oops.Code("STORE_TOKEN_COLLISION").With("operation", operation).Wrap(auth.ErrTokenCollision)
		case myErr.Number == errNoReferencedRow2:
			return oops.Code("STORE_USER_NOT_FOUND").With("operation", operation).Wrap(auth.ErrUserNotFound)
		}
	}
	return auth.PersistenceError(code, operation, err)
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialStore)(nil)
