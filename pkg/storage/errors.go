// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import "errors"

var (
	// ErrNotFound is returned when a tier holds no value for the requested key.
	ErrNotFound = errors.New("key not found")

	// ErrUnknownKind is returned by the factory for an unsupported tier kind.
	ErrUnknownKind = errors.New("unknown storage tier kind")
)
