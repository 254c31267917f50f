// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// SessionTokenHashExists reports whether any session, live or not, has this hash.
func (s *CredentialStore) SessionTokenHashExists(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_sessions WHERE token_hash = $1)
	`, tokenHash).Scan(&exists)
	if err != nil {
		return false, classifyPgError("SESSION_EXISTS_FAILED", "check token hash", err)
	}
	return exists, nil
}

// CreateSession stores a new session.
func (s *CredentialStore) CreateSession(ctx context.Context, session *auth.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		int64(session.UserID),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return classifyPgError("SESSION_CREATE_FAILED", "insert user_session", err)
	}
	return nil
}

// RevokeSession sets revoked_at unless it is already set.
func (s *CredentialStore) RevokeSession(ctx context.Context, id auth.SessionID, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE user_sessions SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return classifyPgError("SESSION_REVOKE_FAILED", "revoke user_session", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrSessionNotFound)
	}
	return nil
}

const selectSession = `
	SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
	FROM user_sessions
`

// GetSessionByTokenHash retrieves a session by its token hash.
func (s *CredentialStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := s.pool.QueryRow(ctx, selectSession+`WHERE token_hash = $1`, tokenHash)
	return scanSession(row, "SESSION_GET_BY_TOKEN_FAILED", "get session by token hash")
}

// GetSessionByID retrieves a session by its id.
func (s *CredentialStore) GetSessionByID(ctx context.Context, id auth.SessionID) (*auth.Session, error) {
	row := s.pool.QueryRow(ctx, selectSession+`WHERE id = $1`, id.String())
	return scanSession(row, "SESSION_GET_BY_ID_FAILED", "get session by id")
}

func scanSession(row pgx.Row, code, operation string) (*auth.Session, error) {
	var (
		idStr     string
		userID    int64
		hash      string
		expiresAt time.Time
		createdAt time.Time
		revokedAt *time.Time
	)
	err := row.Scan(&idStr, &userID, &hash, &expiresAt, &createdAt, &revokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrSessionNotFound)
	}
	if err != nil {
		return nil, classifyPgError(code, operation, err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, auth.PersistenceError("SESSION_INVALID_ID", "parse session id", err)
	}

	return &auth.Session{
		ID:        id,
		UserID:    auth.UserID(userID),
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		RevokedAt: revokedAt,
	}, nil
}

// DeleteExpiredSessions removes sessions that expired before the given time.
func (s *CredentialStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM user_sessions WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, classifyPgError("SESSION_DELETE_EXPIRED_FAILED", "delete expired user_sessions", err)
	}
	return result.RowsAffected(), nil
}
