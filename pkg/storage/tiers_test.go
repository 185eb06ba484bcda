// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseTier runs the contract every Tier implementation must satisfy.
func exerciseTier(t *testing.T, tier Tier) {
	t.Helper()
	ctx := context.Background()

	_, err := tier.Get(ctx, "session")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tier.Set(ctx, "session", []byte(`{"token":"a"}`)))
	got, err := tier.Get(ctx, "session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"a"}`, string(got))

	require.NoError(t, tier.Set(ctx, "session", []byte(`{"token":"b"}`)))
	got, err = tier.Get(ctx, "session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"b"}`, string(got))

	require.NoError(t, tier.Delete(ctx, "session"))
	_, err = tier.Get(ctx, "session")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, tier.Delete(ctx, "session"))
	assert.NotEmpty(t, tier.Name())
}

func TestMemoryTier(t *testing.T) {
	t.Parallel()
	tier := NewMemoryTier()
	exerciseTier(t, tier)
	assert.Equal(t, 0, tier.Len())
}

func TestMemoryTier_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tier := NewMemoryTier()

	value := []byte("abc")
	require.NoError(t, tier.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, err := tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestFileTier(t *testing.T) {
	t.Parallel()
	exerciseTier(t, NewFileTier(t.TempDir()))
}

func TestFileTier_Permissions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tier := NewFileTier(dir)

	require.NoError(t, tier.Set(context.Background(), "session", []byte("secret")))

	info, err := os.Stat(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".session.json.")
	}
}

func TestFileTier_CreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "state")
	tier := NewFileTier(dir)

	require.NoError(t, tier.Set(context.Background(), "cookies", []byte("[]")))
	_, err := os.Stat(filepath.Join(dir, "cookies.json"))
	require.NoError(t, err)
}

func TestRedisTier(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tier := NewRedisTierWithClient(client, "test:")
	exerciseTier(t, tier)

	require.NoError(t, tier.Set(context.Background(), "session", []byte("v")))
	assert.True(t, mr.Exists("test:session"), "keys must carry the configured prefix")
}

func TestRedisTier_DefaultPrefix(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tier := NewRedisTierWithClient(client, "")
	require.NoError(t, tier.Set(context.Background(), "session", []byte("v")))
	assert.True(t, mr.Exists(DefaultRedisKeyPrefix+"session"))
}

func TestNewRedisTier(t *testing.T) {
	t.Parallel()

	t.Run("connects", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		tier, err := NewRedisTier(context.Background(), RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = tier.Close() })
		exerciseTier(t, tier)
	})

	t.Run("requires address", func(t *testing.T) {
		t.Parallel()
		_, err := NewRedisTier(context.Background(), RedisConfig{})
		require.Error(t, err)
	})

	t.Run("fails when unreachable", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedisTier(context.Background(), RedisConfig{Addr: addr})
		require.Error(t, err)
	})
}
