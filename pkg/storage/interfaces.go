// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the key-value tiers the session layer persists into.
//
// A tier holds small opaque values (a serialized session, the broker cookies)
// under fixed keys. Durable tiers survive process restarts (file, OS keyring,
// redis); ephemeral tiers live only for the current run (memory, or a file in
// the XDG runtime directory which the OS wipes at logout).
package storage

import "context"

//go:generate mockgen -destination=mocks/mock_tier.go -package=mocks -source=interfaces.go Tier

// Tier is a key-value storage tier.
type Tier interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Name returns a human-readable name for this tier.
	Name() string
}

// Kind identifies a tier implementation.
type Kind string

const (
	// KindFile stores values as files under the XDG state directory.
	KindFile Kind = "file"
	// KindKeyring stores values in the OS keyring.
	KindKeyring Kind = "keyring"
	// KindRedis stores values in redis.
	KindRedis Kind = "redis"
	// KindRuntime stores values as files under the XDG runtime directory.
	KindRuntime Kind = "runtime"
	// KindMemory keeps values in process memory.
	KindMemory Kind = "memory"
)

// DurableKinds lists the kinds usable as the durable tier.
var DurableKinds = []Kind{KindFile, KindKeyring, KindRedis}

// EphemeralKinds lists the kinds usable as the ephemeral tier.
var EphemeralKinds = []Kind{KindRuntime, KindMemory}
