// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stacklok/toolhive-core/env"

	"github.com/shiftdesk/shiftdesk/pkg/auth"
	"github.com/shiftdesk/shiftdesk/pkg/config"
	"github.com/shiftdesk/shiftdesk/pkg/records"
	"github.com/shiftdesk/shiftdesk/pkg/telemetry"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig(ctx context.Context) (*config.Config, config.Store, error) {
	store, err := config.NewLocalStore(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	effective := cfg.WithEnv(&env.OSReader{})
	if u := viper.GetString("broker-url"); u != "" {
		effective.BrokerURL = u
	}
	if err := effective.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", store.Path(), err)
	}
	return &effective, store, nil
}

// newAuthClient builds the session layer from config and restores any
// session kept from an earlier run.
func newAuthClient(ctx context.Context) (*auth.Client, *config.Config, error) {
	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, err := auth.New(ctx, auth.Options{
		BrokerURL:      cfg.BrokerURL,
		Storage:        cfg.StorageOptions(),
		RequestTimeout: cfg.RequestTimeout,
		RefreshTimeout: cfg.RefreshTimeout,
		Recorder:       telemetry.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	client.Restore(ctx)
	return client, cfg, nil
}

// newRecordsClient returns a records client authenticated by a restored session.
func newRecordsClient(ctx context.Context) (*records.Client, func(), error) {
	client, _, err := newAuthClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !client.SignedIn() {
		_ = client.Close()
		return nil, nil, fmt.Errorf("not signed in, run \"shiftdesk login\" first")
	}
	closeFn := func() { _ = client.Close() }
	return records.NewClient(client.HTTPClient(), client.BaseURL()), closeFn, nil
}

// readSecret reads a secret from piped stdin, or prompts for it with echo disabled.
func readSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	stat, err := in.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, prompt)
	value, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out) // Add a newline after the hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read from terminal: %w", err)
	}
	return string(value), nil
}

// readLine prompts for a visible value.
func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateFormat(format string) error {
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format %q, must be %q or %q", format, FormatText, FormatJSON)
	}
	return nil
}
