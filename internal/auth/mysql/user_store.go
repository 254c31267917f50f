// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// Username and email columns use a case-insensitive collation, so plain
// equality matches regardless of case.

// UsernameExists reports whether a user with this username exists, ignoring case.
func (s *CredentialStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
	if err != nil {
		return false, classifyMySQLError("USER_EXISTS_FAILED", "check username", err)
	}
	return exists, nil
}

// EmailExists reports whether a user with this email exists, ignoring case.
func (s *CredentialStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	if err != nil {
		return false, classifyMySQLError("USER_EXISTS_FAILED", "check email", err)
	}
	return exists, nil
}

// CreateUser inserts a user and returns its id.
func (s *CredentialStore) CreateUser(ctx context.Context, user *auth.NewUser) (auth.UserID, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, email, birthdate, firstname, lastname)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Birthdate,
		user.FirstName,
		user.LastName,
	)
	if err != nil {
		return 0, classifyMySQLError("USER_CREATE_FAILED", "insert user", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, auth.PersistenceError("USER_CREATE_FAILED", "read insert id", err)
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
	err := s.db.GetContext(ctx, &id, `SELECT id FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrUserNotFound)
	}
	if err != nil {
		return 0, classifyMySQLError("USER_GET_FAILED", "get user by username", err)
	}
	return auth.UserID(id), nil
}

// PasswordHash returns the stored password hash of a user.
func (s *CredentialStore) PasswordHash(ctx context.Context, id auth.UserID) (string, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash, `SELECT password_hash FROM users WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return "", oops.Code("USER_NOT_FOUND").
			With("user_id", int64(id)).
			Wrap(auth.ErrUserNotFound)
	}
	if err != nil {
		return "", classifyMySQLError("USER_GET_FAILED", "get password hash", err)
	}
	return hash, nil
}
