// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package broker talks to the authentication endpoints of the shiftdesk broker.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/versions"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	forgotPath  = "/auth/forgot"
	resetPath   = "/auth/reset"

	// RequestIDHeader correlates client requests with broker logs.
	RequestIDHeader = "X-Request-ID"

	// maxBodySize caps how much of a broker response is read.
	maxBodySize = 1 << 20

	defaultTimeout = 30 * time.Second
)

// Client calls the broker's /auth endpoints. The refresh credential is the
// cookie the broker sets on login, held in the client's jar.
type Client struct {
	base  *url.URL
	http  *http.Client
	jar   *Jar
	clock clock.PassiveClock
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses hc for transport. Its Jar is replaced by the client's jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithJar uses jar as the holder of the refresh credential.
func WithJar(jar *Jar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithClock sets the clock used to turn relative lifetimes into expiry times.
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// New creates a client for the broker at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:  base,
		http:  &http.Client{Timeout: defaultTimeout},
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jar == nil {
		c.jar, err = NewJar(context.Background(), base)
		if err != nil {
			return nil, err
		}
	}
	c.http.Jar = c.jar
	return c, nil
}

// ParseBaseURL validates that raw is an absolute http(s) URL.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, shderrors.NewValidationError("invalid broker URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, shderrors.NewValidationError(fmt.Sprintf("broker URL %q must be an absolute http(s) URL", raw), nil)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// BaseURL returns a copy of the broker base URL.
func (c *Client) BaseURL() *url.URL {
	cp := *c.base
	return &cp
}

// Jar returns the jar holding the refresh credential.
func (c *Client) Jar() *Jar {
	return c.jar
}

// HTTPClient returns the HTTP client used for broker calls. It shares the cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Login exchanges credentials for a session. A rejected login is a CredentialError.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	status, body, err := c.post(ctx, loginPath, map[string]string{"email": email, "password": password})
	if err != nil {
		return session.Session{}, err
	}

	switch {
	case isSuccess(status):
		return c.grant(body)
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return session.Session{}, shderrors.NewCredentialError(brokerMessage(body, "invalid email or password"), nil)
	default:
		return session.Session{}, unexpectedStatus(loginPath, status, body)
	}
}

// Refresh exchanges the refresh credential for a new session. Any non-2xx
// answer means the credential is no longer valid and yields an UnauthorizedError.
func (c *Client) Refresh(ctx context.Context) (session.Session, error) {
	status, body, err := c.post(ctx, refreshPath, struct{}{})
	if err != nil {
		return session.Session{}, err
	}
	if !isSuccess(status) {
		return session.Session{}, shderrors.NewUnauthorizedError(
			fmt.Sprintf("session refresh rejected with status %d", status), nil)
	}
	return c.grant(body)
}

// Forgot asks the broker to mail a reset link. An unknown address is reported
// as success so the response never reveals whether an account exists.
func (c *Client) Forgot(ctx context.Context, email string) error {
	status, body, err := c.post(ctx, forgotPath, map[string]string{"email": email})
	if err != nil {
		return err
	}
	switch {
	case isSuccess(status), status == http.StatusNotFound:
		return nil
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return shderrors.NewValidationError(brokerMessage(body, "email address rejected"), nil)
	default:
		return unexpectedStatus(forgotPath, status, body)
	}
}

// Reset sets a new password using a single-use reset token.
func (c *Client) Reset(ctx context.Context, token, newPassword string) error {
	status, body, err := c.post(ctx, resetPath, map[string]string{"token": token, "new_password": newPassword})
	if err != nil {
		return err
	}
	switch {
	case isSuccess(status):
		return nil
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusNotFound,
		status == http.StatusGone, status == http.StatusUnprocessableEntity:
		return shderrors.NewValidationError(brokerMessage(body, "reset link is invalid or has expired"), nil)
	default:
		return unexpectedStatus(resetPath, status, body)
	}
}

// ResetCredentials forgets the refresh credential, in memory and in storage.
func (c *Client) ResetCredentials(ctx context.Context) error {
	return c.jar.Reset(ctx)
}

func (c *Client) grant(body []byte) (session.Session, error) {
	sess, err := parseGrant(body, c.clock.Now())
	if err != nil {
		return session.Session{}, shderrors.NewDeserializationError("unreadable token response", err)
	}
	return sess, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, shderrors.NewInternalError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, shderrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", versions.UserAgent())
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	hc := *c.http
	hc.Jar = c.jar.Pinned()
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, shderrors.NewNetworkError(fmt.Sprintf("broker request %s failed", path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, shderrors.NewNetworkError(fmt.Sprintf("failed to read broker response for %s", path), err)
	}
	logger.Debugw("broker call", "path", path, "status", resp.StatusCode, "request_id", requestID)
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func unexpectedStatus(path string, status int, body []byte) error {
	return shderrors.NewBrokerError(
		fmt.Sprintf("%s returned status %d: %s", path, status, brokerMessage(body, http.StatusText(status))), nil)
}

// brokerMessage extracts the human readable error the broker sent, if any.
func brokerMessage(body []byte, fallback string) string {
	for _, path := range []string{"message", "error", "error_description", "detail"} {
		if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return fallback
}
