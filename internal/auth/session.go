// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionLifetime is how long a session stays active after login.
const DefaultSessionLifetime = 24 * time.Hour

// SessionID identifies a session.
type SessionID = ulid.ULID

// SessionState is the derived lifecycle state of a session.
type SessionState int

// Session states. Revoked and Expired are terminal.
const (
	SessionActive SessionState = iota
	SessionExpired
	SessionRevoked
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionExpired:
		return "expired"
	case SessionRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Session is a login session. Only the hash of its token is kept.
type Session struct {
	ID        SessionID
	UserID    UserID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// NewSession creates a validated Session created at now.
func NewSession(userID UserID, tokenHash string, now, expiresAt time.Time) (*Session, error) {
	if userID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").
			With("user_id", int64(userID)).
			Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("created_at", now).
			With("expires_at", expiresAt).
			Errorf("expiry must be after creation")
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// StateAt reports the session state at t. Revocation wins over expiry.
func (s *Session) StateAt(t time.Time) SessionState {
	if s.RevokedAt != nil {
		return SessionRevoked
	}
	if t.After(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// HashSessionToken computes the hex SHA-256 of a session token.
// Only this value is ever persisted.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
