// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gate authenticates outgoing broker requests. It attaches the bearer
// token and, when the broker answers 401, refreshes the session and replays
// the request once.
package gate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	"github.com/shiftdesk/shiftdesk/pkg/broker"
	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/telemetry"
	"github.com/shiftdesk/shiftdesk/pkg/versions"
)

// SessionSource exposes the current session and its generation.
type SessionSource interface {
	Snapshot() (session.Session, uint64, bool)
}

// Refresher resolves an unauthorized response. It is implemented by refresh.Scheduler.
type Refresher interface {
	RefreshFrom(ctx context.Context, seen uint64) (session.Session, error)
}

// Gate is an http.RoundTripper that authenticates requests with the current session.
type Gate struct {
	// origin is the broker's scheme and host. Only requests to it carry the bearer.
	origin    string
	sessions  SessionSource
	refresher Refresher
	next      http.RoundTripper
	timeout   time.Duration
	recorder  *telemetry.Recorder
}

var _ http.RoundTripper = (*Gate)(nil)

// Option configures a Gate.
type Option func(*Gate)

// WithTransport sets the transport requests are sent on.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gate) {
		g.next = rt
	}
}

// WithTimeout sets the timeout of clients returned by Client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithRecorder records retry metrics.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(g *Gate) {
		g.recorder = r
	}
}

// New creates a gate for the broker at base over the given session source and refresher.
func New(base *url.URL, sessions SessionSource, refresher Refresher, opts ...Option) *Gate {
	g := &Gate{
		origin:    origin(base),
		sessions:  sessions,
		refresher: refresher,
		next:      http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Client returns an HTTP client that sends every request through the gate.
func (g *Gate) Client() *http.Client {
	return &http.Client{Transport: g, Timeout: g.timeout}
}

// Do sends req through the gate.
func (g *Gate) Do(req *http.Request) (*http.Response, error) {
	return g.RoundTrip(req)
}

// RoundTrip implements http.RoundTripper. A 401 triggers one shared refresh
// and exactly one replay; a second 401 is returned to the caller unchanged.
// A failed refresh yields an UnauthorizedError. Requests to any other origin,
// including redirects away from the broker, are sent without a bearer.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}
	requestID := req.Header.Get(broker.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if origin(req.URL) != g.origin {
		logger.Debugw("request leaves the broker, sending without credentials",
			"method", req.Method, "host", req.URL.Host, "request_id", requestID)
		return g.send(req, getBody, "", requestID)
	}

	sess, gen, signedIn := g.sessions.Snapshot()
	token := ""
	if signedIn {
		token = sess.AccessToken
	}

	resp, err := g.send(req, getBody, token, requestID)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	logger.Debugw("request unauthorized, refreshing session",
		"method", req.Method, "path", req.URL.Path, "request_id", requestID)
	fresh, err := g.refresher.RefreshFrom(req.Context(), gen)
	if err != nil {
		g.recorder.Retry(req.Context(), telemetry.OutcomeSkipped)
		if shderrors.IsUnauthorized(err) {
			return nil, err
		}
		return nil, shderrors.NewUnauthorizedError("session could not be refreshed", err)
	}

	resp, err = g.send(req, getBody, fresh.AccessToken, requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		g.recorder.Retry(req.Context(), telemetry.OutcomeFailure)
		logger.Warnw("request still unauthorized after refresh",
			"method", req.Method, "path", req.URL.Path, "request_id", requestID)
	} else {
		g.recorder.Retry(req.Context(), telemetry.OutcomeSuccess)
	}
	return resp, nil
}

func (g *Gate) send(req *http.Request, getBody func() (io.ReadCloser, error), token, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, shderrors.NewInternalError("failed to replay request body", err)
		}
		out.Body = body
		out.GetBody = getBody
	}
	out.Header.Set(broker.RequestIDHeader, requestID)
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", versions.UserAgent())
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := g.next.RoundTrip(out)
	if err != nil {
		return nil, shderrors.NewNetworkError(fmt.Sprintf("%s %s failed", req.Method, req.URL.Redacted()), err)
	}
	return resp, nil
}

// origin returns the scheme and host of u with the default port made explicit.
func origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		switch scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		}
	}
	return scheme + "://" + strings.ToLower(u.Hostname()) + ":" + port
}

// replayableBody returns a function producing fresh copies of the request
// body, buffering it when the request cannot produce one itself.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, shderrors.NewInternalError("failed to buffer request body", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
