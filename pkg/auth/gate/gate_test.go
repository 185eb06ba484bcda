// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gate_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftdesk/shiftdesk/pkg/auth/gate"
	"github.com/shiftdesk/shiftdesk/pkg/auth/refresh"
	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	"github.com/shiftdesk/shiftdesk/pkg/broker"
	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

// fakeBroker accepts exactly one token at a time and rotates it on refresh.
type fakeBroker struct {
	mu         sync.Mutex
	valid      string
	refreshes  atomic.Int32
	rejectAll  bool
	refreshErr bool
	refreshHit chan struct{}
	bodies     []string
	// redirect is where /away sends its callers.
	redirect string
}

func (f *fakeBroker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		n := f.refreshes.Add(1)
		if f.refreshHit != nil {
			<-f.refreshHit
		}
		if f.refreshErr {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := fmt.Sprintf("token-%d", n)
		f.mu.Lock()
		f.valid = token
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"token":%q,"expires_in":3600}`, token)
	})
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, f.redirect, http.StatusFound)
	})
	mux.HandleFunc("/shifts", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		ok := !f.rejectAll && r.Header.Get("Authorization") == "Bearer "+f.valid
		f.mu.Unlock()
		if r.Header.Get(broker.RequestIDHeader) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	return mux
}

func (f *fakeBroker) seenBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

type fixture struct {
	broker *fakeBroker
	server *httptest.Server
	store  *session.Store
	gate   *gate.Gate
}

func newFixture(t *testing.T, fb *fakeBroker) *fixture {
	t.Helper()
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	client, err := broker.New(srv.URL)
	require.NoError(t, err)
	store := session.NewStore(storage.NewMemoryTier(), storage.NewMemoryTier())
	scheduler := refresh.NewScheduler(store, client)
	store.SetScheduler(scheduler)
	t.Cleanup(scheduler.Disarm)

	return &fixture{
		broker: fb,
		server: srv,
		store:  store,
		gate:   gate.New(client.BaseURL(), store, scheduler),
	}
}

func (f *fixture) signIn(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), session.Session{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}, session.Ephemeral))
}

func (f *fixture) newGet(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/shifts", nil)
	require.NoError(t, err)
	return req
}

func (f *fixture) get(t *testing.T) (*http.Response, error) {
	t.Helper()
	return f.gate.Do(f.newGet(t))
}

func TestGate_AttachesBearer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good"})
	f.signIn(t, "good")

	resp, err := f.get(t)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, f.broker.refreshes.Load())
}

func TestGate_RefreshesAndRetriesOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good"})
	f.signIn(t, "expired")

	resp, err := f.get(t)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), f.broker.refreshes.Load())

	cur, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, "token-1", cur.AccessToken)
}

func TestGate_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	t.Parallel()
	fb := &fakeBroker{valid: "good", refreshHit: make(chan struct{})}
	f := newFixture(t, fb)
	f.signIn(t, "expired")

	const requests = 10
	statuses := make([]int, requests)
	var wg sync.WaitGroup
	for i := range requests {
		req := f.newGet(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.gate.Do(req)
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}

	require.Eventually(t, func() bool { return fb.refreshes.Load() == 1 }, 5*time.Second, time.Millisecond)
	// give every request time to hit its 401 and join the pending refresh
	time.Sleep(50 * time.Millisecond)
	close(fb.refreshHit)
	wg.Wait()

	assert.Equal(t, int32(1), fb.refreshes.Load())
	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestGate_SecondUnauthorizedIsReturned(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{rejectAll: true})
	f.signIn(t, "expired")

	resp, err := f.get(t)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), f.broker.refreshes.Load())
	assert.Len(t, f.broker.seenBodies(), 2)
}

func TestGate_RefreshFailureIsUnauthorized(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good", refreshErr: true})
	f.signIn(t, "expired")

	resp, err := f.get(t)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, shderrors.IsUnauthorized(err))
	assert.Len(t, f.broker.seenBodies(), 1)

	_, ok := f.store.Current()
	assert.False(t, ok)
}

func TestGate_ReplaysBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good"})
	f.signIn(t, "expired")

	// NopCloser hides the reader type, so the request carries no GetBody
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.server.URL+"/shifts",
		io.NopCloser(strings.NewReader(`{"role":"nurse"}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.gate.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"role":"nurse"}`, `{"role":"nurse"}`}, f.broker.seenBodies())
}

func TestGate_TransportErrorIsNetwork(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good"})
	f.signIn(t, "good")

	f.server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/shifts", nil)
	require.NoError(t, err)
	_, err = f.gate.Client().Do(req)
	require.Error(t, err)
	assert.True(t, shderrors.IsNetwork(err))
	assert.Zero(t, f.broker.refreshes.Load())
}

func TestGate_DoesNotMutateCallerRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeBroker{valid: "good"})
	f.signIn(t, "good")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/shifts", nil)
	require.NoError(t, err)
	resp, err := f.gate.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get(broker.RequestIDHeader))
}

func TestGate_DoesNotSendBearerToOtherHosts(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(foreign.Close)

	f := newFixture(t, &fakeBroker{valid: "good", redirect: foreign.URL + "/landing"})
	f.signIn(t, "good")

	t.Run("redirect away from the broker", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/away", nil)
		require.NoError(t, err)
		resp, err := f.gate.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("direct request to another host", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, foreign.URL+"/landing", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer caller-supplied")
		resp, err := f.gate.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", ""}, seen)
	assert.Zero(t, f.broker.refreshes.Load(), "a foreign 401 must not refresh the session")
}
