// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"context"
	"time"
)

// UserStore manages user persistence.
//
// Implementations must enforce case-insensitive uniqueness of usernames and
// emails at insert time and report violations as ErrDuplicateUsername or
// ErrDuplicateEmail. Any other storage failure matches ErrPersistence.
type UserStore interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// CreateUser inserts the user and returns its positive id.
	CreateUser(ctx context.Context, user *NewUser) (UserID, error)

	// FindUserIDByUsername returns ErrUserNotFound if no user matches.
	FindUserIDByUsername(ctx context.Context, username string) (UserID, error)

	// PasswordHash returns ErrUserNotFound if no user matches.
	PasswordHash(ctx context.Context, id UserID) (string, error)
}

// SessionStore manages session persistence.
type SessionStore interface {
	TokenHashChecker

	// CreateSession returns ErrTokenCollision when the token hash is taken and
	// ErrUserNotFound when the owning user does not exist.
	CreateSession(ctx context.Context, session *Session) error

	// RevokeSession marks the session revoked at the given time. Revoking an
	// already revoked session succeeds without change. Returns
	// ErrSessionNotFound if no session has the id.
	RevokeSession(ctx context.Context, id SessionID, at time.Time) error

	// GetSessionByTokenHash returns ErrSessionNotFound if no session matches.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// GetSessionByID returns ErrSessionNotFound if no session has the id.
	GetSessionByID(ctx context.Context, id SessionID) (*Session, error)

	// DeleteExpiredSessions removes sessions that expired before the given
	// time and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// CredentialStore is the full persistence contract of the auth service.
type CredentialStore interface {
	UserStore
	SessionStore
}
