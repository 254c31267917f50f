// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package authtest provides in-memory test doubles for the auth package.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/playgate/playgate/internal/auth"
)

// MemoryStore is a goroutine-safe in-memory auth.CredentialStore. It enforces
// the same case-insensitive uniqueness rules as the SQL schemas.
type MemoryStore struct {
	mu         sync.Mutex
	nextID     auth.UserID
	users      map[auth.UserID]*auth.User
	byUsername map[string]auth.UserID
	byEmail    map[string]auth.UserID
	sessions   map[auth.SessionID]*auth.Session
	byHash     map[string]auth.SessionID
	seeded     map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[auth.UserID]*auth.User),
		byUsername: make(map[string]auth.UserID),
		byEmail:    make(map[string]auth.UserID),
		sessions:   make(map[auth.SessionID]*auth.Session),
		byHash:     make(map[string]auth.SessionID),
		seeded:     make(map[string]struct{}),
	}
}

func fold(s string) string { return strings.ToLower(s) }

// UsernameExists implements auth.UserStore.
func (m *MemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byUsername[fold(username)]
	return ok, nil
}

// EmailExists implements auth.UserStore.
func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[fold(email)]
	return ok, nil
}

// CreateUser implements auth.UserStore.
func (m *MemoryStore) CreateUser(_ context.Context, u *auth.NewUser) (auth.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[fold(u.Username)]; ok {
		return 0, oops.Code("STORE_DUPLICATE_USERNAME").Wrap(auth.ErrDuplicateUsername)
	}
	if _, ok := m.byEmail[fold(u.Email)]; ok {
		return 0, oops.Code("STORE_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail)
	}

	m.nextID++
	id := m.nextID
	m.users[id] = &auth.User{
		ID:           id,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Email:        u.Email,
		Birthdate:    u.Birthdate,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CreatedAt:    time.Now(),
	}
	m.byUsername[fold(u.Username)] = id
	m.byEmail[fold(u.Email)] = id
	return id, nil
}

// FindUserIDByUsername implements auth.UserStore.
func (m *MemoryStore) FindUserIDByUsername(_ context.Context, username string) (auth.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[fold(username)]
	if !ok {
		return 0, auth.ErrUserNotFound
	}
	return id, nil
}

// PasswordHash implements auth.UserStore.
func (m *MemoryStore) PasswordHash(_ context.Context, id auth.UserID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return "", auth.ErrUserNotFound
	}
	return u.PasswordHash, nil
}

// SessionTokenHashExists implements auth.TokenHashChecker.
func (m *MemoryStore) SessionTokenHashExists(_ context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashTaken(tokenHash), nil
}

func (m *MemoryStore) hashTaken(tokenHash string) bool {
	if _, ok := m.byHash[tokenHash]; ok {
		return true
	}
	_, ok := m.seeded[tokenHash]
	return ok
}

// CreateSession implements auth.SessionStore.
func (m *MemoryStore) CreateSession(_ context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashTaken(s.TokenHash) {
		return oops.Code("STORE_TOKEN_COLLISION").Wrap(auth.ErrTokenCollision)
	}
	if _, ok := m.users[s.UserID]; !ok {
		return auth.ErrUserNotFound
	}
	stored := *s
	m.sessions[s.ID] = &stored
	m.byHash[s.TokenHash] = s.ID
	return nil
}

// RevokeSession implements auth.SessionStore.
func (m *MemoryStore) RevokeSession(_ context.Context, id auth.SessionID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return auth.ErrSessionNotFound
	}
	if s.RevokedAt == nil {
		revokedAt := at
		s.RevokedAt = &revokedAt
	}
	return nil
}

// GetSessionByTokenHash implements auth.SessionStore.
func (m *MemoryStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	s := *m.sessions[id]
	return &s, nil
}

// GetSessionByID implements auth.SessionStore.
func (m *MemoryStore) GetSessionByID(_ context.Context, id auth.SessionID) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	s := *stored
	return &s, nil
}

// DeleteExpiredSessions implements auth.SessionStore.
func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.byHash, s.TokenHash)
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// SeedSessionHash marks tokenHash as taken without a backing session, so
// generators hitting it see a collision.
func (m *MemoryStore) SeedSessionHash(tokenHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeded[tokenHash] = struct{}{}
}

// User returns a copy of the stored user.
func (m *MemoryStore) User(id auth.UserID) (auth.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, false
	}
	return *u, true
}

// Sessions returns copies of all stored sessions.
func (m *MemoryStore) Sessions() []auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

var _ auth.CredentialStore = (*MemoryStore)(nil)
