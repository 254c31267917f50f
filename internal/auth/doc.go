// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package auth provides account registration and session authentication.
//
// # Domain Types
//
// Sessions should be created with NewSession, which validates the owner,
// token hash and expiry. Users are inserted from a NewUser built by the
// service after the RegisterRequest has been validated.
//
// # Errors
//
// Every failure matches one of the package sentinels under errors.Is.
// KindOf maps an error onto the Kind taxonomy used by transports.
//
// # Services
//
// Service coordinates a CredentialStore, a PasswordHasher and a
// TokenGenerator:
//   - Register - validated account creation with uniqueness checks
//   - Login - credential verification and session issue
//   - Logout, LogoutToken - session revocation
//   - ValidateSession - token lookup and state check
//   - PruneExpiredSessions - housekeeping
//
// Plaintext tokens are returned once from Login and are never stored or logged.
package auth
