// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/playgate/playgate/internal/auth"
	"github.com/playgate/playgate/internal/auth/authtest"
	pgstore "github.com/playgate/playgate/internal/auth/postgres"
	"github.com/playgate/playgate/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer with the schema migrated.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("playgate_test"),
		postgres.WithUsername("playgate"),
		postgres.WithPassword("playgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(store.DriverPostgres, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.OpenPostgres(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newUser(name string) *auth.NewUser {
	return &auth.NewUser{
		Username:     name,
		PasswordHash: "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		Email:        name + "@example.com",
		Birthdate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		FirstName:    "Test",
		LastName:     "User",
	}
}

func createUser(ctx context.Context, t *testing.T, s *pgstore.CredentialStore, name string) auth.UserID {
	t.Helper()
	id, err := s.CreateUser(ctx, newUser(name))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, int64(id))
	})
	return id
}

func TestCredentialStore_Users(t *testing.T) {
	ctx := context.Background()
	s := pgstore.NewCredentialStore(testPool)

	id := createUser(ctx, t, s, "pg_alice")
	assert.Positive(t, int64(id))

	t.Run("existence checks ignore case", func(t *testing.T) {
		exists, err := s.UsernameExists(ctx, "PG_ALICE")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.EmailExists(ctx, "Pg_Alice@Example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.UsernameExists(ctx, "pg_nobody")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate username differing in case is rejected", func(t *testing.T) {
		u := newUser("PG_Alice")
		u.Email = "other@example.com"
		_, err := s.CreateUser(ctx, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		u := newUser("pg_alice2")
		u.Email = "PG_ALICE@example.com"
		_, err := s.CreateUser(ctx, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("lookups", func(t *testing.T) {
		found, err := s.FindUserIDByUsername(ctx, "pg_alice")
		require.NoError(t, err)
		assert.Equal(t, id, found)

		hash, err := s.PasswordHash(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, newUser("x").PasswordHash, hash)

		_, err = s.FindUserIDByUsername(ctx, "pg_ghost")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestCredentialStore_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	s := pgstore.NewCredentialStore(testPool)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE LOWER(username) = 'pg_racer'`)
	})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := newUser("pg_racer")
			u.Email = fmt.Sprintf("racer%d@example.com", i)
			_, err := s.CreateUser(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case auth.KindOf(err) == auth.KindDuplicateUsername:
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
}

func TestCredentialStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := pgstore.NewCredentialStore(testPool)
	userID := createUser(ctx, t, s, "pg_sessions")

	now := time.Now().UTC().Truncate(time.Microsecond)
	session, err := auth.NewSession(userID, auth.HashSessionToken("pg-token-1"), now, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.CreateSession(ctx, session))

	t.Run("token hash existence", func(t *testing.T) {
		exists, err := s.SessionTokenHashExists(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicate token hash is a collision", func(t *testing.T) {
		dup, err := auth.NewSession(userID, session.TokenHash, now, now.Add(time.Hour))
		require.NoError(t, err)
		err = s.CreateSession(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrTokenCollision)
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		orphan, err := auth.NewSession(auth.UserID(1<<40), auth.HashSessionToken("orphan"), now, now.Add(time.Hour))
		require.NoError(t, err)
		err = s.CreateSession(ctx, orphan)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("get by token hash round-trips", func(t *testing.T) {
		got, err := s.GetSessionByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, userID, got.UserID)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
		assert.Nil(t, got.RevokedAt)

		byID, err := s.GetSessionByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.TokenHash, byID.TokenHash)

		_, err = s.GetSessionByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})

	t.Run("revocation is idempotent and keeps the first timestamp", func(t *testing.T) {
		first := now.Add(time.Minute)
		require.NoError(t, s.RevokeSession(ctx, session.ID, first))
		require.NoError(t, s.RevokeSession(ctx, session.ID, first.Add(time.Minute)))

		got, err := s.GetSessionByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, first.Equal(*got.RevokedAt))
		assert.Equal(t, auth.SessionRevoked, got.StateAt(now))
	})

	t.Run("revoking an unknown session", func(t *testing.T) {
		err := s.RevokeSession(ctx, ulid.Make(), now)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})

	t.Run("expired sessions are pruned", func(t *testing.T) {
		old, err := auth.NewSession(userID, auth.HashSessionToken("pg-old"), now.Add(-2*time.Hour), now.Add(-time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.CreateSession(ctx, old))

		n, err := s.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = s.GetSessionByTokenHash(ctx, old.TokenHash)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})
}

// TestAuthService_Postgres runs the login flow end to end against the real schema.
func TestAuthService_Postgres(t *testing.T) {
	ctx := context.Background()
	s := pgstore.NewCredentialStore(testPool)
	tokens, err := auth.NewSessionTokenGenerator(s)
	require.NoError(t, err)
	svc, err := auth.NewAuthService(s, authtest.FastHasher(), tokens)
	require.NoError(t, err)

	id, err := svc.Register(ctx, auth.RegisterRequest{
		Username:  "pg_flow",
		Password:  "pw1",
		Email:     "pg_flow@example.com",
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, int64(id))
	})

	result, err := svc.Login(ctx, auth.LoginRequest{Username: "pg_flow", Password: "pw1"})
	require.NoError(t, err)

	session, err := svc.ValidateSession(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, id, session.UserID)

	require.NoError(t, svc.Logout(ctx, result.Session.ID))
	_, err = svc.ValidateSession(ctx, result.Token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)

	_, err = svc.Login(ctx, auth.LoginRequest{Username: "pg_flow", Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
