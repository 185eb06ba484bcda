// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth assembles the session layer: the session store, the broker
// client, the refresh scheduler and the request gate. A Client is the one
// object callers pass around; there is no package-level session.
package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"k8s.io/utils/clock"

	"github.com/shiftdesk/shiftdesk/pkg/auth/flows"
	"github.com/shiftdesk/shiftdesk/pkg/auth/gate"
	"github.com/shiftdesk/shiftdesk/pkg/auth/refresh"
	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	"github.com/shiftdesk/shiftdesk/pkg/broker"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/storage"
	"github.com/shiftdesk/shiftdesk/pkg/telemetry"
)

// Options configures a Client.
type Options struct {
	BrokerURL      string
	Storage        storage.Options
	RequestTimeout time.Duration
	RefreshTimeout time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// Recorder may be nil.
	Recorder *telemetry.Recorder
}

// Client is the session layer of one running program.
type Client struct {
	durable   storage.Tier
	ephemeral storage.Tier

	store     *session.Store
	broker    *broker.Client
	scheduler *refresh.Scheduler
	gate      *gate.Gate
	login     *flows.LoginFlow
	reset     *flows.PasswordResetFlow
	recorder  *telemetry.Recorder

	unsubscribe func()
}

// New builds the storage tiers named in opts.Storage and a client over them.
func New(ctx context.Context, opts Options) (*Client, error) {
	durable, err := storage.NewDurable(ctx, opts.Storage)
	if err != nil {
		return nil, err
	}
	ephemeral, err := storage.NewEphemeral(opts.Storage)
	if err != nil {
		closeTier(durable)
		return nil, err
	}
	return NewWithTiers(ctx, opts, durable, ephemeral)
}

// NewWithTiers creates a client over the given tiers. The client is signed
// out until Restore or Login.
func NewWithTiers(ctx context.Context, opts Options, durable, ephemeral storage.Tier) (*Client, error) {
	base, err := broker.ParseBaseURL(opts.BrokerURL)
	if err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	jar, err := broker.NewJar(ctx, base, durable, ephemeral)
	if err != nil {
		return nil, err
	}
	brokerClient, err := broker.New(opts.BrokerURL,
		broker.WithHTTPClient(&http.Client{Transport: transport, Timeout: opts.RequestTimeout}),
		broker.WithJar(jar),
		broker.WithClock(clk))
	if err != nil {
		return nil, err
	}

	store := session.NewStore(durable, ephemeral)
	scheduler := refresh.NewScheduler(store, brokerClient,
		refresh.WithClock(clk),
		refresh.WithTimeout(opts.RefreshTimeout),
		refresh.WithRecorder(opts.Recorder))
	store.SetScheduler(scheduler)

	c := &Client{
		durable:   durable,
		ephemeral: ephemeral,
		store:     store,
		broker:    brokerClient,
		scheduler: scheduler,
		gate: gate.New(base, store, scheduler,
			gate.WithTransport(transport),
			gate.WithTimeout(opts.RequestTimeout),
			gate.WithRecorder(opts.Recorder)),
		login:    flows.NewLoginFlow(brokerClient, store, brokerClient),
		reset:    flows.NewPasswordResetFlow(brokerClient),
		recorder: opts.Recorder,
	}
	c.unsubscribe = store.Subscribe(c.onSessionEvent)
	return c, nil
}

// onSessionEvent keeps the refresh credential in the same tier as the session.
func (c *Client) onSessionEvent(ev session.Event) {
	c.recorder.SessionEvent(context.Background(), string(ev.Kind))
	if ev.Kind == session.EventCleared {
		return
	}
	if ev.Choice == session.Durable {
		c.broker.Jar().Bind(context.Background(), c.durable, c.ephemeral)
	} else {
		c.broker.Jar().Bind(context.Background(), c.ephemeral, c.durable)
	}
}

// Restore adopts a session persisted by an earlier run. It reports whether one was found.
func (c *Client) Restore(ctx context.Context) bool {
	return c.store.Restore(ctx)
}

// Current returns the current session without any I/O.
func (c *Client) Current() (session.Session, bool) {
	return c.store.Current()
}

// SignedIn reports whether a session is present.
func (c *Client) SignedIn() bool {
	_, ok := c.store.Current()
	return ok
}

// Choice returns where the current session is persisted.
func (c *Client) Choice() session.PersistenceChoice {
	return c.store.Choice()
}

// NextRefresh reports when the session will next be refreshed.
func (c *Client) NextRefresh() (time.Time, bool) {
	return c.scheduler.NextRefresh()
}

// Login signs in. With staySignedIn the session survives restarts.
func (c *Client) Login(ctx context.Context, email, password string, staySignedIn bool) (session.Session, error) {
	return c.login.Login(ctx, email, password, staySignedIn)
}

// Logout signs out and forgets the refresh credential.
func (c *Client) Logout(ctx context.Context) error {
	return c.login.Logout(ctx)
}

// Refresh refreshes the session now.
func (c *Client) Refresh(ctx context.Context) (session.Session, error) {
	return c.scheduler.RefreshNow(ctx)
}

// Forgot requests a password reset link for email.
func (c *Client) Forgot(ctx context.Context, email string) error {
	return c.reset.Forgot(ctx, email)
}

// ResetPassword redeems a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.reset.Reset(ctx, token, newPassword)
}

// Subscribe registers an observer of session changes.
func (c *Client) Subscribe(o session.Observer) func() {
	return c.store.Subscribe(o)
}

// Store returns the session store. It is an oauth2.TokenSource.
func (c *Client) Store() *session.Store {
	return c.store
}

// HTTPClient returns a client whose requests are authenticated by the gate.
func (c *Client) HTTPClient() *http.Client {
	return c.gate.Client()
}

// BaseURL returns the broker base URL.
func (c *Client) BaseURL() *url.URL {
	return c.broker.BaseURL()
}

// Close stops the refresh timer and releases the tiers.
func (c *Client) Close() error {
	c.unsubscribe()
	c.scheduler.Disarm()
	return errors.Join(closeTier(c.durable), closeTier(c.ephemeral))
}

func closeTier(t storage.Tier) error {
	closer, ok := t.(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		logger.Warnw("failed to close storage tier", "tier", t.Name(), "error", err)
		return err
	}
	return nil
}
