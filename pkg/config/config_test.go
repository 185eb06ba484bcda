// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"

	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "shiftdesk", "config.yaml"))
	require.NoError(t, err)
	return s
}

func TestLocalStore_LoadCreatesDefaults(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	exists, err := s.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), *cfg)

	exists, err = s.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLocalStore_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	cfg := NewDefaultConfig()
	cfg.BrokerURL = "https://broker.example.com"
	cfg.StaySignedIn = false
	cfg.RequestTimeout = 5 * time.Second
	cfg.Storage.Durable = string(storage.KindRedis)
	cfg.Storage.Redis = Redis{Addr: "localhost:6379", DB: 2, KeyPrefix: "ops:"}
	require.NoError(t, s.Save(ctx, &cfg))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_timeout: 5s")
}

func TestLocalStore_LoadFillsMissingFields(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o750))
	require.NoError(t, os.WriteFile(s.Path(), []byte("broker_url: https://broker.example.com\n"), 0o600))

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://broker.example.com", cfg.BrokerURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, string(storage.KindFile), cfg.Storage.Durable)
	assert.Equal(t, string(storage.KindRuntime), cfg.Storage.Ephemeral)
}

func TestLocalStore_LoadRejectsInvalidYAML(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o750))
	require.NoError(t, os.WriteFile(s.Path(), []byte("broker_url: [unterminated"), 0o600))

	_, err := s.Load(context.Background())
	assert.ErrorContains(t, err, "failed to parse config file yaml")
}

func TestLocalStore_UpdateConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(cfg *Config) error {
				cfg.Storage.Redis.DB += i + 1
				return nil
			}))
		}()
	}
	wg.Wait()

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Storage.Redis.DB)
}

func TestLocalStore_UpdateRejectsInvalidResult(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(cfg *Config) error {
		cfg.BrokerURL = "ftp://broker.example.com"
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidValue)

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultBrokerURL, cfg.BrokerURL)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "relative broker url", mutate: func(c *Config) { c.BrokerURL = "/api" }, wantErr: true},
		{name: "unknown durable tier", mutate: func(c *Config) { c.Storage.Durable = "floppy" }, wantErr: true},
		{name: "memory is not durable", mutate: func(c *Config) { c.Storage.Durable = "memory" }, wantErr: true},
		{name: "unknown ephemeral tier", mutate: func(c *Config) { c.Storage.Ephemeral = "keyring" }, wantErr: true},
		{name: "redis without address", mutate: func(c *Config) { c.Storage.Durable = "redis" }, wantErr: true},
		{name: "redis with address", mutate: func(c *Config) {
			c.Storage.Durable = "redis"
			c.Storage.Redis.Addr = "localhost:6379"
		}},
		{name: "negative timeout", mutate: func(c *Config) { c.RefreshTimeout = -time.Second }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_WithEnv(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(BrokerURLEnvVar).Return("https://override.example.com")
	mockEnv.EXPECT().Getenv(DurableStorageEnvVar).Return("keyring")

	base := NewDefaultConfig()
	cfg := base.WithEnv(mockEnv)
	assert.Equal(t, "https://override.example.com", cfg.BrokerURL)
	assert.Equal(t, "keyring", cfg.Storage.Durable)
	assert.Equal(t, DefaultBrokerURL, base.BrokerURL)
}

func TestConfig_StorageOptions(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()
	cfg.Storage.Durable = "redis"
	cfg.Storage.Redis = Redis{Addr: "cache:6379", Password: "pw", DB: 1}

	opts := cfg.StorageOptions()
	assert.Equal(t, storage.KindRedis, opts.Durable)
	assert.Equal(t, storage.KindRuntime, opts.Ephemeral)
	assert.Equal(t, "cache:6379", opts.Redis.Addr)
	assert.Equal(t, 1, opts.Redis.DB)
}
