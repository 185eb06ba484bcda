// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

// init registers all built-in config fields
func init() {
	registerStringField("broker-url",
		func(cfg *Config) *string { return &cfg.BrokerURL },
		func(value string) error {
			_, err := validateURLScheme(value)
			return err
		})
	registerStringField("storage.durable",
		func(cfg *Config) *string { return &cfg.Storage.Durable },
		func(value string) error {
			if !storage.ValidDurable(storage.Kind(value)) {
				return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidValue, value, storage.DurableKinds)
			}
			return nil
		})
	registerStringField("storage.ephemeral",
		func(cfg *Config) *string { return &cfg.Storage.Ephemeral },
		func(value string) error {
			if !storage.ValidEphemeral(storage.Kind(value)) {
				return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidValue, value, storage.EphemeralKinds)
			}
			return nil
		})
	registerStringField("storage.keyring-service",
		func(cfg *Config) *string { return &cfg.Storage.KeyringService }, nil)
	registerStringField("storage.redis.addr",
		func(cfg *Config) *string { return &cfg.Storage.Redis.Addr }, nil)
	registerStringField("storage.redis.key-prefix",
		func(cfg *Config) *string { return &cfg.Storage.Redis.KeyPrefix }, nil)

	registerDurationField("request-timeout", func(cfg *Config) *time.Duration { return &cfg.RequestTimeout })
	registerDurationField("refresh-timeout", func(cfg *Config) *time.Duration { return &cfg.RefreshTimeout })

	RegisterConfigField(ConfigFieldSpec{
		Name: "stay-signed-in",
		Setter: func(cfg *Config, value string) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			cfg.StaySignedIn = b
			return nil
		},
		Getter:   func(cfg *Config) string { return strconv.FormatBool(cfg.StaySignedIn) },
		Unsetter: func(cfg *Config) { cfg.StaySignedIn = false },
	})

	RegisterConfigField(ConfigFieldSpec{
		Name: "storage.redis.db",
		Setter: func(cfg *Config, value string) error {
			db, err := strconv.Atoi(value)
			if err != nil || db < 0 {
				return fmt.Errorf("%w: %q is not a database number", ErrInvalidValue, value)
			}
			cfg.Storage.Redis.DB = db
			return nil
		},
		Getter:   func(cfg *Config) string { return strconv.Itoa(cfg.Storage.Redis.DB) },
		Unsetter: func(cfg *Config) { cfg.Storage.Redis.DB = 0 },
	})
}

func registerStringField(name string, field func(*Config) *string, validate func(string) error) {
	RegisterConfigField(ConfigFieldSpec{
		Name:     name,
		Validate: validate,
		Setter: func(cfg *Config, value string) error {
			*field(cfg) = value
			return nil
		},
		Getter:   func(cfg *Config) string { return *field(cfg) },
		Unsetter: func(cfg *Config) { *field(cfg) = "" },
	})
}

func registerDurationField(name string, field func(*Config) *time.Duration) {
	RegisterConfigField(ConfigFieldSpec{
		Name: name,
		Setter: func(cfg *Config, value string) error {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return fmt.Errorf("%w: %q is not a positive duration", ErrInvalidValue, value)
			}
			*field(cfg) = d
			return nil
		},
		Getter:   func(cfg *Config) string { return field(cfg).String() },
		Unsetter: func(cfg *Config) { *field(cfg) = 0 },
	})
}
