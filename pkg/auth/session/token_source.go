// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"golang.org/x/oauth2"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
)

var _ oauth2.TokenSource = (*Store)(nil)

// Token returns the current session as an oauth2 bearer token, so oauth2-aware
// HTTP clients can consume the session. It never refreshes; refreshing is the
// scheduler's job.
func (s *Store) Token() (*oauth2.Token, error) {
	sess, ok := s.Current()
	if !ok {
		return nil, shderrors.NewUnauthorizedError("not signed in", nil)
	}
	return &oauth2.Token{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		Expiry:      sess.Expiry(),
	}, nil
}
