// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrInvalidValue is returned when a config value fails validation
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownField is returned when a config field name is not registered
	ErrUnknownField = errors.New("unknown config field")
)
