// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/playgate/playgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertErrorCode_WrappedSentinel(t *testing.T) {
	sentinel := errors.New("user not found")
	err := oops.Code("USER_NOT_FOUND").With("user_id", int64(7)).Wrap(sentinel)

	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "user_id", int64(7))
	assert.ErrorIs(t, err, sentinel)
}
