// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains the definition of the shiftdesk config structure
// and the logic required to load and update it.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/stacklok/toolhive-core/env"

	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

// Environment variables that override the config file.
const (
	BrokerURLEnvVar      = "SHIFTDESK_BROKER_URL"
	DurableStorageEnvVar = "SHIFTDESK_DURABLE_STORAGE"
)

// Defaults for a fresh config.
const (
	DefaultBrokerURL      = "http://localhost:8080"
	DefaultRequestTimeout = 30 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
)

// Config represents the configuration of the application.
type Config struct {
	BrokerURL      string        `yaml:"broker_url"`
	StaySignedIn   bool          `yaml:"stay_signed_in"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	Storage        Storage       `yaml:"storage"`
}

// Storage selects the tiers the session is persisted in.
type Storage struct {
	Durable        string `yaml:"durable"`
	Ephemeral      string `yaml:"ephemeral"`
	KeyringService string `yaml:"keyring_service,omitempty"`
	Redis          Redis  `yaml:"redis,omitempty"`
}

// Redis configures the redis durable tier.
type Redis struct {
	Addr      string `yaml:"addr,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("shiftdesk/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// NewDefaultConfig returns a config with default values.
func NewDefaultConfig() Config {
	return Config{
		BrokerURL:      DefaultBrokerURL,
		StaySignedIn:   true,
		RequestTimeout: DefaultRequestTimeout,
		RefreshTimeout: DefaultRefreshTimeout,
		Storage: Storage{
			Durable:   string(storage.KindFile),
			Ephemeral: string(storage.KindRuntime),
		},
	}
}

// applyDefaults fills fields an older or hand-written config left empty.
func (c *Config) applyDefaults() {
	d := NewDefaultConfig()
	if c.BrokerURL == "" {
		c.BrokerURL = d.BrokerURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = d.RefreshTimeout
	}
	if c.Storage.Durable == "" {
		c.Storage.Durable = d.Storage.Durable
	}
	if c.Storage.Ephemeral == "" {
		c.Storage.Ephemeral = d.Storage.Ephemeral
	}
}

// WithEnv returns a copy of c with environment overrides applied.
func (c Config) WithEnv(envReader env.Reader) Config {
	if v := envReader.Getenv(BrokerURLEnvVar); v != "" {
		c.BrokerURL = v
	}
	if v := envReader.Getenv(DurableStorageEnvVar); v != "" {
		c.Storage.Durable = v
	}
	return c
}

// Validate checks that the config can be used to build a client.
func (c *Config) Validate() error {
	if _, err := validateURLScheme(c.BrokerURL); err != nil {
		return fmt.Errorf("broker_url: %w", err)
	}
	if !storage.ValidDurable(storage.Kind(c.Storage.Durable)) {
		return fmt.Errorf("storage.durable: %w: %q (valid: %v)", ErrInvalidValue, c.Storage.Durable, storage.DurableKinds)
	}
	if !storage.ValidEphemeral(storage.Kind(c.Storage.Ephemeral)) {
		return fmt.Errorf("storage.ephemeral: %w: %q (valid: %v)", ErrInvalidValue, c.Storage.Ephemeral, storage.EphemeralKinds)
	}
	if storage.Kind(c.Storage.Durable) == storage.KindRedis && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr: %w: required when the durable tier is redis", ErrInvalidValue)
	}
	if c.RequestTimeout < 0 || c.RefreshTimeout < 0 {
		return fmt.Errorf("timeouts: %w: must not be negative", ErrInvalidValue)
	}
	return nil
}

// StorageOptions converts the storage section for storage.NewDurable and storage.NewEphemeral.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Durable:        storage.Kind(c.Storage.Durable),
		Ephemeral:      storage.Kind(c.Storage.Ephemeral),
		KeyringService: c.Storage.KeyringService,
		Redis: storage.RedisConfig{
			Addr:      c.Storage.Redis.Addr,
			Username:  c.Storage.Redis.Username,
			Password:  c.Storage.Redis.Password,
			DB:        c.Storage.Redis.DB,
			KeyPrefix: c.Storage.Redis.KeyPrefix,
		},
	}
}

func parseBool(value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
	}
	return b, nil
}
