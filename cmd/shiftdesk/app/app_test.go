// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftdesk/shiftdesk/pkg/records"
	"github.com/shiftdesk/shiftdesk/pkg/versions"
)

// execute runs the root command. Commands share viper state, so callers must
// not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// testConfig writes a config whose tiers never touch the user's directories.
func testConfig(t *testing.T, brokerURL string) string {
	t.Helper()
	mr := miniredis.RunT(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "broker_url: " + brokerURL + "\n" +
		"storage:\n" +
		"  durable: redis\n" +
		"  ephemeral: memory\n" +
		"  redis:\n" +
		"    addr: " + mr.Addr() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestStatus_SignedOut(t *testing.T) { //nolint:paralleltest // shares viper state
	path := testConfig(t, "http://broker.invalid")

	out, err := execute(t, "status", "--config", path, "--format", "json")
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, false, st["signed_in"])
	assert.Equal(t, "http://broker.invalid", st["broker"])
	assert.NotContains(t, st, "expires_at")
}

func TestRecords_RequireSession(t *testing.T) { //nolint:paralleltest // shares viper state
	path := testConfig(t, "http://broker.invalid")

	_, err := execute(t, "records", "list", "staff", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestRecords_UnknownCollection(t *testing.T) { //nolint:paralleltest // shares viper state
	path := testConfig(t, "http://broker.invalid")

	_, err := execute(t, "records", "list", "rota", "--config", path)
	require.Error(t, err)
}

func TestBrokerURLFlagOverridesConfig(t *testing.T) { //nolint:paralleltest // shares viper state
	path := testConfig(t, "http://broker.invalid")

	out, err := execute(t, "status", "--config", path, "--format", "json", "--broker-url", "https://other.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "https://other.example.com")

	_, err = execute(t, "status", "--config", path, "--broker-url", "ftp://nope")
	require.Error(t, err)
}

func TestConfigSetGetUnset(t *testing.T) { //nolint:paralleltest // shares viper state
	path := testConfig(t, "http://broker.invalid")

	_, err := execute(t, "config", "set", "broker-url", "https://broker.example.com", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "config", "get", "broker-url", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "https://broker.example.com\n", out)

	_, err = execute(t, "config", "set", "broker-url", "not a url", "--config", path)
	require.Error(t, err)

	_, err = execute(t, "config", "unset", "broker-url", "--config", path)
	require.NoError(t, err)
	out, err = execute(t, "config", "get", "broker-url", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080\n", out)
}

func TestConfigShow_MasksRedisPassword(t *testing.T) { //nolint:paralleltest // shares viper state
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"storage:\n  durable: redis\n  redis:\n    addr: localhost:6379\n    password: hunter2\n"), 0o600))

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "addr: localhost:6379")
	assert.NotContains(t, out, "hunter2")
}

func TestVersion_JSON(t *testing.T) { //nolint:paralleltest // shares viper state
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, versions.GetVersionInfo(), info)
}

func TestParseFilters(t *testing.T) {
	t.Parallel()

	q, err := parseFilters([]string{"ward=B", "role=nurse", "ward=C", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, url.Values{"ward": {"B", "C"}, "role": {"nurse"}, "note": {"a=b"}}, q)

	_, err = parseFilters([]string{"ward"})
	require.Error(t, err)
	_, err = parseFilters([]string{"=x"})
	require.Error(t, err)
}

func TestBuildRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		pairs   []string
		want    records.Record
		wantErr bool
	}{
		{
			name:  "pairs decode json values",
			pairs: []string{"name=Ada", "hours=37.5", "active=true"},
			want:  records.Record{"name": "Ada", "hours": 37.5, "active": true},
		},
		{
			name:  "pairs override data",
			data:  `{"name":"Ada","ward":"A"}`,
			pairs: []string{"ward=B"},
			want:  records.Record{"name": "Ada", "ward": "B"},
		},
		{name: "data must be an object", data: `[1,2]`, wantErr: true},
		{name: "nothing to send", wantErr: true},
		{name: "bad pair", pairs: []string{"novalue"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildRecord(tt.data, tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalendarRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 3, 15, 4, 5, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

	start, end, err := calendarRange(now, "", "")
	require.NoError(t, err)
	assert.Equal(t, day(3), start)
	assert.Equal(t, day(16), end)

	start, end, err = calendarRange(now, "2025-03-10", "2025-03-12")
	require.NoError(t, err)
	assert.Equal(t, day(10), start)
	assert.Equal(t, day(12), end)

	_, _, err = calendarRange(now, "2025-03-10", "2025-03-09")
	require.Error(t, err)
	_, _, err = calendarRange(now, "10/03/2025", "")
	require.Error(t, err)
}
