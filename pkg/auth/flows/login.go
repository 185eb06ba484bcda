// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package flows implements the user-facing authentication flows: signing in
// and out, and resetting a forgotten password.
package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
)

// LoginFlow signs users in and out.
type LoginFlow struct {
	auth     Authenticator
	store    SessionStore
	resetter CredentialResetter
}

// NewLoginFlow creates a login flow. resetter may be nil when there is no
// refresh credential to forget on logout.
func NewLoginFlow(auth Authenticator, store SessionStore, resetter CredentialResetter) *LoginFlow {
	return &LoginFlow{auth: auth, store: store, resetter: resetter}
}

// Login authenticates with the broker and saves the session durably when
// staySignedIn is set, ephemerally otherwise.
func (f *LoginFlow) Login(ctx context.Context, email, password string, staySignedIn bool) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.Session{}, shderrors.NewValidationError("email and password are required", nil)
	}

	sess, err := f.auth.Login(ctx, email, password)
	if err != nil {
		return session.Session{}, err
	}

	choice := session.ChoiceFor(staySignedIn)
	if err := f.store.Save(ctx, sess, choice); err != nil {
		return session.Session{}, err
	}
	logger.Infow("signed in", "persistence", string(choice))
	return sess, nil
}

// Logout forgets the refresh credential and clears the session. Both steps
// are attempted even if one fails. The credential goes first so a refresh
// racing the logout has nothing left to present.
func (f *LoginFlow) Logout(ctx context.Context) error {
	var errs []error
	if f.resetter != nil {
		if err := f.resetter.ResetCredentials(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.store.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	logger.Infow("signed out")
	return errors.Join(errs...)
}
