// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

// lockTimeout is the maximum time to wait for a file lock
const lockTimeout = 1 * time.Second

const appDir = "shiftdesk"

// FileTier stores each key as a 0600 file. Writes go through a temp file and a
// rename under a lock file, so a concurrent reader sees either the old or the
// new value.
type FileTier struct {
	name    string
	resolve func(key string) (string, error)
}

var _ Tier = (*FileTier)(nil)

// NewFileTier creates a file tier rooted at dir.
func NewFileTier(dir string) *FileTier {
	return &FileTier{
		name: string(KindFile),
		resolve: func(key string) (string, error) {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return "", fmt.Errorf("failed to create storage directory: %w", err)
			}
			return filepath.Join(dir, key+".json"), nil
		},
	}
}

// NewStateFileTier creates the durable file tier under $XDG_STATE_HOME/shiftdesk.
func NewStateFileTier() *FileTier {
	return &FileTier{
		name: string(KindFile),
		resolve: func(key string) (string, error) {
			return xdg.StateFile(filepath.Join(appDir, key+".json"))
		},
	}
}

// NewRuntimeFileTier creates the ephemeral file tier under $XDG_RUNTIME_DIR/shiftdesk.
// The runtime directory is removed by the OS when the user's login session ends.
func NewRuntimeFileTier() *FileTier {
	return &FileTier{
		name: string(KindRuntime),
		resolve: func(key string) (string, error) {
			return xdg.RuntimeFile(filepath.Join(appDir, key+".json"))
		},
	}
}

// Get reads the file for key.
func (f *FileTier) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	// #nosec G304: path is derived from a fixed key under an application directory.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Set atomically replaces the file for key.
func (f *FileTier) Set(ctx context.Context, key string, value []byte) error {
	path, err := f.resolve(key)
	if err != nil {
		return err
	}
	return withLock(ctx, path, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		tmpName := tmp.Name()
		defer func() { _ = os.Remove(tmpName) }()

		if err := tmp.Chmod(0o600); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to set permissions: %w", err)
		}
		if _, err := tmp.Write(value); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to close temp file: %w", err)
		}
		if err := os.Rename(tmpName, path); err != nil {
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
		return nil
	})
}

// Delete removes the file for key.
func (f *FileTier) Delete(ctx context.Context, key string) error {
	path, err := f.resolve(key)
	if err != nil {
		return err
	}
	return withLock(ctx, path, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	})
}

// Name returns the tier name.
func (f *FileTier) Name() string {
	return f.name
}

func withLock(ctx context.Context, path string, fn func() error) error {
	// Use a separate lock file for cross-platform compatibility
	fileLock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer func() { _ = fileLock.Unlock() }()

	return fn()
}
