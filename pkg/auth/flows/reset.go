// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flows

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
)

// MinPasswordLength is the shortest password a reset accepts.
const MinPasswordLength = 8

// PasswordResetFlow requests reset links and redeems them.
type PasswordResetFlow struct {
	auth Authenticator
}

// NewPasswordResetFlow creates a password reset flow.
func NewPasswordResetFlow(auth Authenticator) *PasswordResetFlow {
	return &PasswordResetFlow{auth: auth}
}

// Forgot asks the broker to send a reset link to email. Success does not
// imply that an account exists for the address.
func (f *PasswordResetFlow) Forgot(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !govalidator.IsEmail(email) {
		return shderrors.NewValidationError(fmt.Sprintf("%q is not a valid email address", email), nil)
	}
	return f.auth.Forgot(ctx, email)
}

// Reset sets newPassword using the token from a reset link.
func (f *PasswordResetFlow) Reset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return shderrors.NewValidationError("reset token is required", nil)
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return shderrors.NewValidationError(
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength), nil)
	}
	return f.auth.Reset(ctx, token, newPassword)
}
