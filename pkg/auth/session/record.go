// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecordKey is the fixed key a session is stored under in each tier.
const RecordKey = "session"

// record is the serialized form of a session.
type record struct {
	Token       string            `json:"token"`
	User        *Profile          `json:"user,omitempty"`
	ExpiresAt   int64             `json:"expires_at"`
	Persistence PersistenceChoice `json:"persistence"`
}

func encodeRecord(s Session, choice PersistenceChoice) ([]byte, error) {
	return json.Marshal(record{
		Token:       s.AccessToken,
		User:        s.User,
		ExpiresAt:   s.ExpiresAt,
		Persistence: choice,
	})
}

func decodeRecord(data []byte) (Session, PersistenceChoice, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Session{}, "", fmt.Errorf("failed to decode session record: %w", err)
	}
	if r.Token == "" {
		return Session{}, "", errors.New("session record has no token")
	}
	if r.ExpiresAt < 0 {
		return Session{}, "", fmt.Errorf("session record has invalid expiry %d", r.ExpiresAt)
	}
	return Session{AccessToken: r.Token, User: r.User, ExpiresAt: r.ExpiresAt}, r.Persistence, nil
}
