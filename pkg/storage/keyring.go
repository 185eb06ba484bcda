// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name entries are stored under.
const DefaultKeyringService = "shiftdesk"

// KeyringTier stores values in the OS keyring (Secret Service, Keychain, Credential Manager).
type KeyringTier struct {
	service string
}

var _ Tier = (*KeyringTier)(nil)

// NewKeyringTier creates a keyring tier for the given service name.
func NewKeyringTier(service string) *KeyringTier {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringTier{service: service}
}

// Get reads key from the keyring.
func (k *KeyringTier) Get(_ context.Context, key string) ([]byte, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return []byte(value), nil
}

// Set writes key to the keyring.
func (k *KeyringTier) Set(_ context.Context, key string, value []byte) error {
	if err := keyring.Set(k.service, key, string(value)); err != nil {
		return fmt.Errorf("failed to write to keyring: %w", err)
	}
	return nil
}

// Delete removes key from the keyring.
func (k *KeyringTier) Delete(_ context.Context, key string) error {
	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Name returns "keyring".
func (*KeyringTier) Name() string {
	return string(KindKeyring)
}

// IsKeyringAvailable tests if the OS keyring is available by setting and deleting a probe value.
func IsKeyringAvailable(service string) bool {
	if service == "" {
		service = DefaultKeyringService
	}
	const probeKey = "shiftdesk-keyring-probe"
	if err := keyring.Set(service, probeKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(service, probeKey)
	return true
}
