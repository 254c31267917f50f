// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// Constraint names created by the postgres migrations.
const (
	constraintUsername  = "users_username_key"
	constraintEmail     = "users_email_key"
	constraintTokenHash = "user_sessions_token_hash_key"
	constraintUserFK    = "user_sessions_user_id_fkey"
)

// Pool is the subset of *pgxpool.Pool used by the store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore implements auth.CredentialStore using PostgreSQL.
type CredentialStore struct {
	pool Pool
}

// NewCredentialStore creates a new CredentialStore on pool.
func NewCredentialStore(pool Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// classifyPgError maps driver errors onto the auth error taxonomy.
// Constraint violations become the matching sentinel; anything else is a
// persistence failure.
func classifyPgError(code, operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintUsername:
			return oops.Code("STORE_DUPLICATE_USERNAME").With("operation", operation).Wrap(auth.ErrDuplicateUsername)
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintEmail:
			return oops.Code("STORE_DUPLICATE_EMAIL").With("operation", operation).Wrap(auth.ErrDuplicateEmail)
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintTokenHash:
			return oops.Code("STORE_TOKEN_COLLISION").With("operation", operation).Wrap(auth.ErrTokenCollision)
		case pgErr.Code == pgerrcode.ForeignKeyViolation && pgErr.ConstraintName == constraintUserFK:
			return oops.Code("STORE_USER_NOT_FOUND").With("operation", operation).Wrap(auth.ErrUserNotFound)
		}
	}
	return auth.PersistenceError(code, operation, err)
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialStore)(nil)
