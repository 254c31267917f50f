// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Request validation limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	// MaxPasswordLength bounds passwords in bytes.
	MaxPasswordLength = 256
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// UserID identifies a user. Store-assigned ids are always positive.
type UserID int64

// User is a registered account.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	Email        string
	Birthdate    time.Time
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// NewUser is the data needed to insert a user row.
type NewUser struct {
	Username     string
	PasswordHash string
	Email        string
	Birthdate    time.Time
	FirstName    string
	LastName     string
}

// RegisterRequest carries the fields of an account registration.
type RegisterRequest struct {
	Username  string    `validate:"required,username"`
	Password  string    `validate:"required"`
	Email     string    `validate:"required,email,max=254"`
	Birthdate time.Time `validate:"-"`
	FirstName string    `validate:"max=100"`
	LastName  string    `validate:"max=100"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails if the tag name is already taken or the func is nil.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
	return v
}

// ValidateUsername checks if a username meets requirements.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("length", len(username)).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("length", len(username)).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// Validate checks the request and returns an error matching ErrInvalidRequest
// naming the offending fields.
func (r RegisterRequest) Validate() error {
	var fields []string
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return oops.Code("AUTH_INVALID_REQUEST").Wrap(errors.Join(ErrInvalidRequest, err))
		}
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
	}
	if len(r.Password) > MaxPasswordLength {
		fields = append(fields, "password")
	}
	if r.Birthdate.IsZero() {
		fields = append(fields, "birthdate")
	}
	if len(fields) > 0 {
		return oops.Code("AUTH_INVALID_REQUEST").
			With("fields", fields).
			Wrap(ErrInvalidRequest)
	}
	return nil
}

// Validate checks that both credentials are present.
func (r LoginRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return oops.Code("AUTH_INVALID_REQUEST").Wrap(ErrInvalidRequest)
	}
	return nil
}
