// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"slices"
)

// Options selects and configures the tiers built by NewDurable and NewEphemeral.
type Options struct {
	Durable        Kind
	Ephemeral      Kind
	KeyringService string
	Redis          RedisConfig
}

// NewDurable builds the durable tier for opts.Durable.
func NewDurable(ctx context.Context, opts Options) (Tier, error) {
	switch opts.Durable {
	case KindFile, "":
		return NewStateFileTier(), nil
	case KindKeyring:
		return NewKeyringTier(opts.KeyringService), nil
	case KindRedis:
		return NewRedisTier(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("%w: %q is not a durable tier (valid: %v)", ErrUnknownKind, opts.Durable, DurableKinds)
	}
}

// NewEphemeral builds the ephemeral tier for opts.Ephemeral.
func NewEphemeral(opts Options) (Tier, error) {
	switch opts.Ephemeral {
	case KindRuntime, "":
		return NewRuntimeFileTier(), nil
	case KindMemory:
		return NewMemoryTier(), nil
	default:
		return nil, fmt.Errorf("%w: %q is not an ephemeral tier (valid: %v)", ErrUnknownKind, opts.Ephemeral, EphemeralKinds)
	}
}

// ValidDurable reports whether k can back the durable tier.
func ValidDurable(k Kind) bool {
	return slices.Contains(DurableKinds, k)
}

// ValidEphemeral reports whether k can back the ephemeral tier.
func ValidEphemeral(k Kind) bool {
	return slices.Contains(EphemeralKinds, k)
}
