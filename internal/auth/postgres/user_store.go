// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// UsernameExists reports whether a user with this username exists, ignoring case.
func (s *CredentialStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))
	`, username).Scan(&exists)
	if err != nil {
		return false, classifyPgError("USER_EXISTS_FAILED", "check username", err)
	}
	return exists, nil
}

// EmailExists reports whether a user with this email exists, ignoring case.
func (s *CredentialStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))
	`, email).Scan(&exists)
	if err != nil {
		return false, classifyPgError("USER_EXISTS_FAILED", "check email", err)
	}
	return exists, nil
}

// CreateUser inserts a user and returns its id.
func (s *CredentialStore) CreateUser(ctx context.Context, user *auth.NewUser) (auth.UserID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, birthdate, firstname, lastname)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Birthdate,
		user.FirstName,
		user.LastName,
	).Scan(&id)
	if err != nil {
		return 0, classifyPgError("USER_CREATE_FAILED", "insert user", err)
	}
	if id <= 0 {
		return 0, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", id).
			Wrap(auth.ErrUnknown)
	}
	return auth.UserID(id), nil
}

// FindUserIDByUsername returns the id of the user with this username.
func (s *CredentialStore) FindUserIDByUsername(ctx context.Context, username string) (auth.UserID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM users WHERE LOWER(username) = LOWER($1)
	`, username).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrUserNotFound)
	}
	if err != nil {
		return 0, classifyPgError("USER_GET_FAILED", "get user by username", err)
	}
	return auth.UserID(id), nil
}

// PasswordHash returns the stored password hash of a user.
func (s *CredentialStore) PasswordHash(ctx context.Context, id auth.UserID) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT password_hash FROM users WHERE id = $1
	`, int64(id)).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("USER_NOT_FOUND").
			With("user_id", int64(id)).
			Wrap(auth.ErrUserNotFound)
	}
	if err != nil {
		return "", classifyPgError("USER_GET_FAILED", "get password hash", err)
	}
	return hash, nil
}
