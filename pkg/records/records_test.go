// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL + "/api")
	require.NoError(t, err)
	return NewClient(srv.Client(), base)
}

func TestClient_List(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"id":1,"name":"Ann"},{"id":"s-2","name":"Bo"}]`},
		{name: "data envelope", body: `{"data":[{"id":1,"name":"Ann"},{"id":"s-2","name":"Bo"}],"total":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/staff", r.URL.Path)
				assert.Equal(t, "role=nurse", r.URL.RawQuery)
				_, _ = w.Write([]byte(tt.body))
			}))

			recs, err := c.List(context.Background(), Staff, url.Values{"role": {"nurse"}})
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "1", recs[0].ID())
			assert.Equal(t, "s-2", recs[1].ID())
			assert.Equal(t, "Bo", recs[1].String("name"))
		})
	}
}

func TestClient_ListRejectsUnexpectedShape(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":"nope"}`))
	}))

	_, err := c.List(context.Background(), Shifts, nil)
	assert.True(t, shderrors.IsDeserialization(err))
}

func TestClient_CRUD(t *testing.T) {
	t.Parallel()

	type call struct {
		method, path string
		body         map[string]any
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &body))
		}
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, body})
		mu.Unlock()

		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":7,"role":"nurse"}}`))
		default:
			_, _ = w.Write([]byte(`{"id":7,"role":"charge nurse"}`))
		}
	}))
	ctx := context.Background()

	created, err := c.Create(ctx, Assignments, Record{"role": "nurse"})
	require.NoError(t, err)
	assert.Equal(t, "7", created.ID())

	got, err := c.Get(ctx, Assignments, "7")
	require.NoError(t, err)
	assert.Equal(t, "charge nurse", got.String("role"))

	updated, err := c.Update(ctx, Assignments, "7", Record{"role": "charge nurse"})
	require.NoError(t, err)
	assert.Equal(t, "7", updated.ID())

	require.NoError(t, c.Delete(ctx, Assignments, "7"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 4)
	assert.Equal(t, call{http.MethodPost, "/api/assignments", map[string]any{"role": "nurse"}}, calls[0])
	assert.Equal(t, call{http.MethodGet, "/api/assignments/7", nil}, calls[1])
	assert.Equal(t, call{http.MethodPut, "/api/assignments/7", map[string]any{"role": "charge nurse"}}, calls[2])
	assert.Equal(t, call{http.MethodDelete, "/api/assignments/7", nil}, calls[3])
}

func TestClient_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		check  func(error) bool
	}{
		{status: http.StatusUnauthorized, check: shderrors.IsUnauthorized},
		{status: http.StatusNotFound, check: shderrors.IsNotFound},
		{status: http.StatusUnprocessableEntity, check: shderrors.IsValidation},
		{status: http.StatusForbidden, check: shderrors.IsBroker},
		{status: http.StatusBadGateway, check: shderrors.IsBroker},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"from broker"}`))
			}))

			_, err := c.Get(context.Background(), Timesheets, "1")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Contains(t, err.Error(), "from broker")
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = NewClient(http.DefaultClient, base).List(context.Background(), Staff, nil)
	assert.True(t, shderrors.IsNetwork(err))
}

func TestClient_SetRateOverride(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/staff/42/rate-overrides", r.URL.Path)
		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]any{"rate": 31.5, "reason": "holiday cover", "effective_from": "2026-12-24"}, got)
		_, _ = w.Write([]byte(`{"id":"ro-1"}`))
	}))

	rec, err := c.SetRateOverride(context.Background(), "42", RateOverride{
		Rate:          31.5,
		Reason:        " holiday cover ",
		EffectiveFrom: time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "ro-1", rec.ID())
}

func TestRateOverride_Validate(t *testing.T) {
	t.Parallel()
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, RateOverride{Rate: 1, Reason: "r", EffectiveFrom: day}.Validate())
	assert.True(t, shderrors.IsValidation(RateOverride{Rate: 0, Reason: "r", EffectiveFrom: day}.Validate()))
	assert.True(t, shderrors.IsValidation(RateOverride{Rate: 1, Reason: " ", EffectiveFrom: day}.Validate()))
	assert.True(t, shderrors.IsValidation(RateOverride{Rate: 1, Reason: "r"}.Validate()))

	c := NewClient(http.DefaultClient, &url.URL{Scheme: "http", Host: "unused"})
	_, err := c.SetRateOverride(context.Background(), "", RateOverride{Rate: 1, Reason: "r", EffectiveFrom: day})
	assert.True(t, shderrors.IsValidation(err))
}

func TestParseCollection(t *testing.T) {
	t.Parallel()

	c, err := ParseCollection(" Shifts ")
	require.NoError(t, err)
	assert.Equal(t, Shifts, c)

	_, err = ParseCollection("payroll")
	assert.True(t, shderrors.IsValidation(err))
}
