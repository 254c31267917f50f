// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// sessionRow is the user_sessions row shape scanned by sqlx.
type sessionRow struct {
	ID        string     `db:"id"`
	UserID    int64      `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

func (r sessionRow) toSession() (*auth.Session, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, auth.PersistenceError("SESSION_INVALID_ID", "parse session id", err)
	}
	return &auth.Session{
		ID:        id,
		UserID:    auth.UserID(r.UserID),
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		RevokedAt: r.RevokedAt,
	}, nil
}

// SessionTokenHashExists reports whether any session, live or not, has this hash.
func (s *CredentialStore) SessionTokenHashExists(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_sessions WHERE token_hash = ?)`, tokenHash)
	if err != nil {
		return false, classifyMySQLError("SESSION_EXISTS_FAILED", "check token hash", err)
	}
	return exists, nil
}

// CreateSession stores a new session.
func (s *CredentialStore) CreateSession(ctx context.Context, session *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID.String(),
		int64(session.UserID),
		session.TokenHash,
		session.ExpiresAt.UTC(),
		session.CreatedAt.UTC(),
	)
	if err != nil {
		return classifyMySQLError("SESSION_CREATE_FAILED", "insert user_session", err)
	}
	return nil
}

// RevokeSession sets revoked_at unless it is already set.
//
// MySQL reports changed rows rather than matched rows unless the DSN sets
// clientFoundRows, so a zero count is confirmed with a lookup.
func (s *CredentialStore) RevokeSession(ctx context.Context, id auth.SessionID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_sessions SET revoked_at = COALESCE(revoked_at, ?)
		WHERE id = ?
	`, at.UTC(), id.String())
	if err != nil {
		return classifyMySQLError("SESSION_REVOKE_FAILED", "revoke user_session", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return auth.PersistenceError("SESSION_REVOKE_FAILED", "read rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_sessions WHERE id = ?)`, id.String())
	if err != nil {
		return classifyMySQLError("SESSION_REVOKE_FAILED", "check session exists", err)
	}
	if !exists {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrSessionNotFound)
	}
	return nil
}

// GetSessionByTokenHash retrieves a session by its token hash.
func (s *CredentialStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM user_sessions
		WHERE token_hash = ?
	`, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrSessionNotFound)
	}
	if err != nil {
		return nil, classifyMySQLError("SESSION_GET_BY_TOKEN_FAILED", "get session by token hash", err)
	}
	return row.toSession()
}

// GetSessionByID retrieves a session by its id.
func (s *CredentialStore) GetSessionByID(ctx context.Context, id auth.SessionID) (*auth.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM user_sessions
		WHERE id = ?
	`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrSessionNotFound)
	}
	if err != nil {
		return nil, classifyMySQLError("SESSION_GET_BY_ID_FAILED", "get session by id", err)
	}
	return row.toSession()
}

// DeleteExpiredSessions removes sessions that expired before the given time.
func (s *CredentialStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at < ?`, before.UTC())
	if err != nil {
		return 0, classifyMySQLError("SESSION_DELETE_EXPIRED_FAILED", "delete expired user_sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, auth.PersistenceError("SESSION_DELETE_EXPIRED_FAILED", "read rows affected", err)
	}
	return n, nil
}
