// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package cache provides a Redis read-through cache for session lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// DefaultKeyPrefix namespaces cache keys.
const DefaultKeyPrefix = "playgate:"

// putScript caches a session unless its revocation marker exists.
// KEYS: hash key, id key, revoked key. ARGV: entry, token hash, ttl ms.
var putScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// revokeScript records the revocation marker and drops cached copies.
// KEYS: id key, revoked key. ARGV: revoked at, marker ttl ms, hash key prefix.
var revokeScript = redis.NewScript(`
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
local hash = redis.call("GET", KEYS[1])
if hash then
	redis.call("DEL", ARGV[3] .. hash)
end
redis.call("DEL", KEYS[1])
return 1
`)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("CACHE_PING_FAILED").With("addr", addr).Wrap(err)
	}
	return client, nil
}

// entry is the cached form of a session.
type entry struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// SessionCache decorates an auth.CredentialStore, caching session lookups
// by token hash until the session expires. Redis failures fall back to the
// underlying store.
type SessionCache struct {
	auth.CredentialStore
	client    *redis.Client
	prefix    string
	logger    *slog.Logger
	now       func() time.Time
	markerTTL time.Duration
}

// Option configures a SessionCache.
type Option func(*SessionCache)

// WithLogger sets the logger used for cache failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SessionCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *SessionCache) { c.prefix = prefix }
}

// WithClock overrides the time source used to compute TTLs.
func WithClock(now func() time.Time) Option {
	return func(c *SessionCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRevocationTTL sets how long revocation markers are kept. It must be at
// least the session lifetime.
func WithRevocationTTL(ttl time.Duration) Option {
	return func(c *SessionCache) {
		if ttl > 0 {
			c.markerTTL = ttl
		}
	}
}

// New wraps store with a Redis-backed session cache.
func New(store auth.CredentialStore, client *redis.Client, opts ...Option) (*SessionCache, error) {
	if store == nil {
		return nil, oops.Code("CACHE_INVALID_CONFIG").Errorf("credential store is required")
	}
	if client == nil {
		return nil, oops.Code("CACHE_INVALID_CONFIG").Errorf("redis client is required")
	}
	c := &SessionCache{
		CredentialStore: store,
		client:          client,
		prefix:          DefaultKeyPrefix,
		logger:          slog.Default(),
		now:             time.Now,
		markerTTL:       auth.DefaultSessionLifetime,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *SessionCache) hashKey(tokenHash string) string {
	return c.prefix + "session:" + tokenHash
}

func (c *SessionCache) idKey(id auth.SessionID) string {
	return c.prefix + "session-id:" + id.String()
}

func (c *SessionCache) revokedKey(id auth.SessionID) string {
	return c.prefix + "session-revoked:" + id.String()
}

// GetSessionByTokenHash returns the cached session or loads it from the store.
func (c *SessionCache) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	raw, err := c.client.Get(ctx, c.hashKey(tokenHash)).Bytes()
	switch {
	case err == nil:
		session, decodeErr := decode(raw, tokenHash)
		if decodeErr == nil {
			return c.applyRevocation(ctx, session), nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "session cache read failed", "error", err)
	}

	session, err := c.CredentialStore.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	c.put(ctx, session)
	return session, nil
}

// applyRevocation marks a cached session revoked when a revocation marker
// exists for it.
func (c *SessionCache) applyRevocation(ctx context.Context, session *auth.Session) *auth.Session {
	if session.RevokedAt != nil {
		return session
	}
	raw, err := c.client.Get(ctx, c.revokedKey(session.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return session
	}
	if err != nil {
		c.logger.WarnContext(ctx, "session cache revocation read failed", "error", err)
		return session
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		at = c.now()
	}
	session.RevokedAt = &at
	return session
}

// RevokeSession revokes in the store, then records a revocation marker and
// drops any cached copy. A concurrent read-through cannot re-cache the
// session once the marker is set.
func (c *SessionCache) RevokeSession(ctx context.Context, id auth.SessionID, at time.Time) error {
	if err := c.CredentialStore.RevokeSession(ctx, id, at); err != nil {
		return err
	}
	c.invalidate(ctx, id, at)
	return nil
}

// put caches session until it expires. Sessions already past expiry are
// not cached.
func (c *SessionCache) put(ctx context.Context, session *auth.Session) {
	ttl := session.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(entry{
		ID:        session.ID.String(),
		UserID:    int64(session.UserID),
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: session.RevokedAt,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "session cache encode failed", "error", err)
		return
	}

	keys := []string{c.hashKey(session.TokenHash), c.idKey(session.ID), c.revokedKey(session.ID)}
	err = putScript.Run(ctx, c.client, keys, raw, session.TokenHash, millis(ttl)).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "session cache write failed", "error", err)
	}
}

func (c *SessionCache) invalidate(ctx context.Context, id auth.SessionID, at time.Time) {
	keys := []string{c.idKey(id), c.revokedKey(id)}
	args := []any{at.UTC().Format(time.RFC3339Nano), millis(c.markerTTL), c.prefix + "session:"}
	if err := revokeScript.Run(ctx, c.client, keys, args...).Err(); err != nil {
		c.logger.WarnContext(ctx, "session cache invalidate failed",
			"session_id", id.String(),
			"error", err)
	}
}

// millis converts a TTL to whole milliseconds, at least one.
func millis(d time.Duration) int64 {
	if ms := d.Milliseconds(); ms > 0 {
		return ms
	}
	return 1
}

func decode(raw []byte, tokenHash string) (*auth.Session, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, oops.Code("CACHE_DECODE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(e.ID)
	if err != nil {
		return nil, oops.Code("CACHE_DECODE_FAILED").Wrap(err)
	}
	return &auth.Session{
		ID:        id,
		UserID:    auth.UserID(e.UserID),
		TokenHash: tokenHash,
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt,
		RevokedAt: e.RevokedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.CredentialStore = (*SessionCache)(nil)
