// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/playgate/playgate/internal/auth"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want auth.Kind
	}{
		{"nil", nil, auth.KindNone},
		{"duplicate username", auth.ErrDuplicateUsername, auth.KindDuplicateUsername},
		{"duplicate email wrapped by oops", oops.Code("X").Wrap(auth.ErrDuplicateEmail), auth.KindDuplicateEmail},
		{"invalid credentials", fmt.Errorf("login: %w", auth.ErrInvalidCredentials), auth.KindInvalidCredentials},
		{"user not found", auth.ErrUserNotFound, auth.KindUserNotFound},
		{"token space exhausted", auth.ErrTokenSpaceExhausted, auth.KindTokenSpaceExhausted},
		{"persistence", auth.PersistenceError("STORE_X", "op", errors.New("boom")), auth.KindPersistenceFailure},
		{"invalid request", auth.ErrInvalidRequest, auth.KindInvalidRequest},
		{"session not found", auth.ErrSessionNotFound, auth.KindSessionNotFound},
		{"invalid session", auth.ErrInvalidSession, auth.KindInvalidSession},
		{"session expired", auth.ErrSessionExpired, auth.KindSessionExpired},
		{"session revoked", auth.ErrSessionRevoked, auth.KindSessionRevoked},
		{"unknown sentinel", auth.ErrUnknown, auth.KindUnknown},
		{"foreign error", errors.New("something else"), auth.KindUnknown},
		{
			"duplicate inside persistence failure",
			auth.PersistenceError("STORE_X", "insert", auth.ErrDuplicateUsername),
			auth.KindDuplicateUsername,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.KindOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "duplicate_username", auth.KindDuplicateUsername.String())
	assert.Equal(t, "token_space_exhausted", auth.KindTokenSpaceExhausted.String())
	assert.Equal(t, "unknown", auth.KindUnknown.String())
	assert.Equal(t, "kind(99)", auth.Kind(99).String())
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("connection reset")
	err := auth.PersistenceError("STORE_INSERT_FAILED", "insert user", cause)

	assert.ErrorIs(t, err, auth.ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")

	oopsErr, ok := oops.AsOops(err)
	assert.True(t, ok)
	assert.Equal(t, "STORE_INSERT_FAILED", oopsErr.Code())
	assert.Equal(t, "insert user", oopsErr.Context()["operation"])
}
