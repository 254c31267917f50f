// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/playgate/playgate/pkg/errutil"
)

// sessionInsertRetries is how many extra generate-and-insert rounds Login
// runs when the insert itself hits a token hash collision.
const sessionInsertRetries = 1

// Service provides account registration and session operations.
type Service struct {
	store    CredentialStore
	hasher   PasswordHasher
	tokens   TokenGenerator
	logger   *slog.Logger
	lifetime time.Duration
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionLifetime sets how long issued sessions stay active.
// Non-positive values are ignored.
func WithSessionLifetime(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService creates a new Service. All dependencies are required.
func NewAuthService(store CredentialStore, hasher PasswordHasher, tokens TokenGenerator, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token generator is required")
	}

	s := &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		logger:   slog.Default(),
		lifetime: DefaultSessionLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SessionLifetime returns the configured session lifetime.
func (s *Service) SessionLifetime() time.Duration {
	return s.lifetime
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account and returns its id.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (UserID, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	exists, err := s.store.UsernameExists(ctx, req.Username)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check username").
			Wrap(err)
	}
	if exists {
		return 0, duplicateUsername(req.Username)
	}

	exists, err = s.store.EmailExists(ctx, req.Email)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email").
			Wrap(err)
	}
	if exists {
		return 0, duplicateEmail()
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	id, err := s.store.CreateUser(ctx, &NewUser{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Birthdate:    req.Birthdate,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		// lost the race against a concurrent registration
		return 0, duplicateUsername(req.Username)
	case errors.Is(err, ErrDuplicateEmail):
		return 0, duplicateEmail()
	case err != nil:
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	case id <= 0:
		unknownErr := oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			With("user_id", int64(id)).
			Wrap(ErrUnknown)
		errutil.LogError(s.logger, "user insert returned no id", unknownErr)
		return 0, unknownErr
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", int64(id))
	return id, nil
}

// LoginResult is the outcome of a successful login. Token is the plaintext
// session token and is never available again.
type LoginResult struct {
	Session *Session
	Token   string
}

// Login verifies credentials and issues a new session.
// Unknown users and wrong passwords both return ErrInvalidCredentials, and
// both run a full password verification.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targetHash := dummyPasswordHash
	userExists := false

	userID, lookupErr := s.store.FindUserIDByUsername(ctx, req.Username)
	switch {
	case lookupErr == nil:
		hash, err := s.store.PasswordHash(ctx, userID)
		switch {
		case err == nil:
			targetHash = hash
			userExists = true
		case !errors.Is(err, ErrUserNotFound):
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get password hash").
				Wrap(err)
		}
	case !errors.Is(lookupErr, ErrUserNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", int64(userID)).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, invalidCredentials()
	}

	session, token, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session created",
		"user_id", int64(userID),
		"session_id", session.ID.String(),
		"expires_at", session.ExpiresAt)

	return &LoginResult{Session: session, Token: token}, nil
}

// issueSession generates a token and persists a session for it. A collision
// reported by the insert itself gets one more round before giving up.
func (s *Service) issueSession(ctx context.Context, userID UserID) (*Session, string, error) {
	var (
		session *Session
		token   string
	)

	backoff := retry.WithMaxRetries(sessionInsertRetries, noDelay())
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, hash, err := s.tokens.Generate(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		sess, err := NewSession(userID, hash, now, now.Add(s.lifetime))
		if err != nil {
			return err
		}

		if err := s.store.CreateSession(ctx, sess); err != nil {
			if errors.Is(err, ErrTokenCollision) {
				s.logger.WarnContext(ctx, "session token collided at insert", "user_id", int64(userID))
				return retry.RetryableError(err)
			}
			return err
		}

		session, token = sess, candidate
		return nil
	})

	switch {
	case err == nil:
		return session, token, nil
	case errors.Is(err, ErrTokenCollision):
		return nil, "", oops.Code("AUTH_TOKEN_SPACE_EXHAUSTED").
			With("user_id", int64(userID)).
			Wrap(ErrTokenSpaceExhausted)
	case errors.Is(err, ErrTokenSpaceExhausted):
		return nil, "", err
	default:
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", int64(userID)).
			Wrap(err)
	}
}

// Logout revokes the session with the given id.
// Revoking an already revoked session succeeds.
func (s *Service) Logout(ctx context.Context, sessionID SessionID) error {
	err := s.store.RevokeSession(ctx, sessionID, s.now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return oops.Code("SESSION_NOT_FOUND").
				With("session_id", sessionID.String()).
				Wrap(ErrSessionNotFound)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "session revoked", "session_id", sessionID.String())
	return nil
}

// LogoutSession revokes session id on behalf of the holder of token. The
// token must belong to an active session of the same user; a session owned
// by someone else is reported as not found.
func (s *Service) LogoutSession(ctx context.Context, token string, id SessionID) error {
	caller, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if caller.ID != id {
		target, err := s.store.GetSessionByID(ctx, id)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return oops.Code("AUTH_LOGOUT_FAILED").
				With("operation", "get session").
				With("session_id", id.String()).
				Wrap(err)
		}
		if err != nil || target.UserID != caller.UserID {
			return oops.Code("SESSION_NOT_FOUND").
				With("session_id", id.String()).
				Wrap(ErrSessionNotFound)
		}
	}
	return s.Logout(ctx, id)
}

// LogoutToken revokes the session identified by its plaintext token.
func (s *Service) LogoutToken(ctx context.Context, token string) error {
	session, err := s.lookupToken(ctx, token)
	if err != nil {
		return err
	}
	return s.Logout(ctx, session.ID)
}

// ValidateSession returns the active session for token. Revoked sessions
// return ErrSessionRevoked, expired ones ErrSessionExpired and unknown
// tokens ErrInvalidSession.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}

	switch session.StateAt(s.now()) {
	case SessionRevoked:
		return nil, oops.Code("SESSION_REVOKED").
			With("session_id", session.ID.String()).
			Wrap(ErrSessionRevoked)
	case SessionExpired:
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			Wrap(ErrSessionExpired)
	default:
		return session, nil
	}
}

// PruneExpiredSessions deletes sessions that expired before now.
func (s *Service) PruneExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, oops.Code("AUTH_PRUNE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "expired sessions pruned", "count", n)
	return n, nil
}

func (s *Service) lookupToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrInvalidSession)
	}

	session, err := s.store.GetSessionByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

func duplicateUsername(username string) error {
	return oops.Code("AUTH_DUPLICATE_USERNAME").
		With("username", username).
		Wrap(ErrDuplicateUsername)
}

func duplicateEmail() error {
	return oops.Code("AUTH_DUPLICATE_EMAIL").Wrap(ErrDuplicateEmail)
}
