// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Token generation defaults.
const (
	SessionTokenBytes       = 32 // 64 hex chars
	DefaultMaxTokenAttempts = 5
)

// TokenHashChecker reports whether a session token hash is already stored.
type TokenHashChecker interface {
	SessionTokenHashExists(ctx context.Context, tokenHash string) (bool, error)
}

// TokenGenerator issues session tokens whose hashes are not yet in use.
type TokenGenerator interface {
	// Generate returns a plaintext token and its hash.
	Generate(ctx context.Context) (token, hash string, err error)
}

// SessionTokenGenerator generates random session tokens and retries on hash
// collisions up to a fixed number of attempts.
type SessionTokenGenerator struct {
	checker     TokenHashChecker
	random      io.Reader
	maxAttempts int
	onCollision func()
}

// TokenOption configures a SessionTokenGenerator.
type TokenOption func(*SessionTokenGenerator)

// WithRandom sets the source of token bytes. Defaults to crypto/rand.
func WithRandom(r io.Reader) TokenOption {
	return func(g *SessionTokenGenerator) {
		g.random = r
	}
}

// WithMaxAttempts bounds the number of generate-and-check rounds.
// Values below 1 are ignored.
func WithMaxAttempts(n int) TokenOption {
	return func(g *SessionTokenGenerator) {
		if n >= 1 {
			g.maxAttempts = n
		}
	}
}

// WithCollisionObserver registers fn to be called on every hash collision.
func WithCollisionObserver(fn func()) TokenOption {
	return func(g *SessionTokenGenerator) {
		g.onCollision = fn
	}
}

// NewSessionTokenGenerator creates a generator that checks candidate hashes
// against checker.
func NewSessionTokenGenerator(checker TokenHashChecker, opts ...TokenOption) (*SessionTokenGenerator, error) {
	if checker == nil {
		return nil, oops.Code("TOKEN_INVALID_CONFIG").Errorf("token hash checker is required")
	}
	g := &SessionTokenGenerator{
		checker:     checker,
		random:      rand.Reader,
		maxAttempts: DefaultMaxTokenAttempts,
		onCollision: func() {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MaxAttempts returns the configured attempt bound.
func (g *SessionTokenGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// Generate creates a token whose hash is not present in the store.
// After MaxAttempts collisions it returns ErrTokenSpaceExhausted.
func (g *SessionTokenGenerator) Generate(ctx context.Context) (token, hash string, err error) {
	backoff := retry.WithMaxRetries(uint64(g.maxAttempts-1), noDelay())

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, candidateHash, genErr := g.newToken()
		if genErr != nil {
			return genErr
		}

		exists, checkErr := g.checker.SessionTokenHashExists(ctx, candidateHash)
		if checkErr != nil {
			return checkErr
		}
		if exists {
			g.onCollision()
			return retry.RetryableError(ErrTokenCollision)
		}

		token, hash = candidate, candidateHash
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenCollision) {
			return "", "", oops.Code("AUTH_TOKEN_SPACE_EXHAUSTED").
				With("attempts", g.maxAttempts).
				Wrap(ErrTokenSpaceExhausted)
		}
		return "", "", err
	}
	return token, hash, nil
}

func (g *SessionTokenGenerator) newToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = io.ReadFull(g.random, buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

func noDelay() retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	})
}

var _ TokenGenerator = (*SessionTokenGenerator)(nil)
