// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session owns the signed-in state of a shiftdesk client: the bearer
// token, the user profile and the token expiry, and where that state is persisted.
//
// A process builds exactly one Store and injects it wherever the session is
// needed; there is no package-level session.
package session

import (
	"fmt"
	"time"
)

// Profile is the user record the broker returns alongside a token.
type Profile struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is a bearer token with its owner and expiry.
// It is replaced wholesale, never updated field by field.
type Session struct {
	AccessToken string
	User        *Profile
	// ExpiresAt is the expiry in epoch seconds; zero means unknown.
	ExpiresAt int64
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown.
func (s Session) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the session has a known expiry at or before now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && now.Unix() >= s.ExpiresAt
}

// clone returns a copy that shares no memory with s.
func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// PersistenceChoice selects the storage tier a session is written to.
type PersistenceChoice string

const (
	// Durable keeps the session across restarts ("stay signed in").
	Durable PersistenceChoice = "durable"
	// Ephemeral keeps the session for the current run only.
	Ephemeral PersistenceChoice = "ephemeral"
)

// ChoiceFor maps the "stay signed in" intent to a PersistenceChoice.
func ChoiceFor(staySignedIn bool) PersistenceChoice {
	if staySignedIn {
		return Durable
	}
	return Ephemeral
}

// Validate returns an error unless c is Durable or Ephemeral.
func (c PersistenceChoice) Validate() error {
	switch c {
	case Durable, Ephemeral:
		return nil
	default:
		return fmt.Errorf("invalid persistence choice %q", string(c))
	}
}
