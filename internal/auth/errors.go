// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Sentinel errors. Store implementations and the service wrap these with oops
// codes and context; match them with errors.Is or classify with KindOf.
var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrDuplicateEmail      = errors.New("email already taken")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrTokenSpaceExhausted = errors.New("session token space exhausted")
	ErrPersistence         = errors.New("persistence failure")
	ErrUnknown             = errors.New("unknown failure")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidSession      = errors.New("invalid session token")
	ErrSessionExpired      = errors.New("session has expired")
	ErrSessionRevoked      = errors.New("session has been revoked")

	// ErrTokenCollision is reported by a store when a session insert hits the
	// token_hash unique constraint. It never leaves the service.
	ErrTokenCollision = errors.New("session token hash collision")
)

// Kind classifies an error returned by this package.
type Kind int

// Error kinds.
const (
	KindNone Kind = iota
	KindDuplicateUsername
	KindDuplicateEmail
	KindInvalidCredentials
	KindUserNotFound
	KindTokenSpaceExhausted
	KindPersistenceFailure
	KindInvalidRequest
	KindSessionNotFound
	KindInvalidSession
	KindSessionExpired
	KindSessionRevoked
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:                "none",
	KindDuplicateUsername:   "duplicate_username",
	KindDuplicateEmail:      "duplicate_email",
	KindInvalidCredentials:  "invalid_credentials",
	KindUserNotFound:        "user_not_found",
	KindTokenSpaceExhausted: "token_space_exhausted",
	KindPersistenceFailure:  "persistence_failure",
	KindInvalidRequest:      "invalid_request",
	KindSessionNotFound:     "session_not_found",
	KindInvalidSession:      "invalid_session",
	KindSessionExpired:      "session_expired",
	KindSessionRevoked:      "session_revoked",
	KindUnknown:             "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindOrder lists sentinels from most to least specific. A persistence
// failure that wraps a duplicate is reported as the duplicate.
var kindOrder = []struct {
	err  error
	kind Kind
}{
	{ErrDuplicateUsername, KindDuplicateUsername},
	{ErrDuplicateEmail, KindDuplicateEmail},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrUserNotFound, KindUserNotFound},
	{ErrTokenSpaceExhausted, KindTokenSpaceExhausted},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrInvalidSession, KindInvalidSession},
	{ErrSessionExpired, KindSessionExpired},
	{ErrSessionRevoked, KindSessionRevoked},
	{ErrPersistence, KindPersistenceFailure},
}

// KindOf maps err onto the error taxonomy. A nil error is KindNone; anything
// not recognised is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// PersistenceError marks err as a storage failure for the given operation.
// The result matches both ErrPersistence and err under errors.Is.
func PersistenceError(code, operation string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
}
