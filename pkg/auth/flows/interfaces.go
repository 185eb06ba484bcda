// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flows

import (
	"context"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks -source=interfaces.go

// Authenticator performs the broker side of the flows.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (session.Session, error)
	Forgot(ctx context.Context, email string) error
	Reset(ctx context.Context, token, newPassword string) error
}

// CredentialResetter forgets the ambient refresh credential.
type CredentialResetter interface {
	ResetCredentials(ctx context.Context) error
}

// SessionStore persists the session produced by a login.
type SessionStore interface {
	Save(ctx context.Context, sess session.Session, choice session.PersistenceChoice) error
	Clear(ctx context.Context) error
}
