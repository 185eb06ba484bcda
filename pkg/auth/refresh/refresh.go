// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package refresh keeps the session alive. It refreshes the access token
// shortly before it expires, and on demand when a request came back unauthorized.
// All callers share a single in-flight exchange.
package refresh

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/telemetry"
)

const (
	// Lead is how long before expiry the refresh is scheduled.
	Lead = 60 * time.Second
	// Floor is the shortest delay ever scheduled.
	Floor = 15 * time.Second

	// DefaultTimeout bounds one exchange with the broker.
	DefaultTimeout = 30 * time.Second

	// persistTimeout bounds the store write that follows an exchange. It runs
	// on its own context because the exchange's may already have expired.
	persistTimeout = 10 * time.Second

	flightKey = "refresh"
)

//go:generate mockgen -destination=mocks/mock_exchanger.go -package=mocks github.com/shiftdesk/shiftdesk/pkg/auth/refresh Exchanger

// Exchanger trades the ambient refresh credential for a new session.
type Exchanger interface {
	Refresh(ctx context.Context) (session.Session, error)
}

// SessionStore is the part of session.Store the scheduler works against.
type SessionStore interface {
	Snapshot() (session.Session, uint64, bool)
	Choice() session.PersistenceChoice
	Generation() uint64
	SaveIfGeneration(ctx context.Context, gen uint64, sess session.Session, choice session.PersistenceChoice) (bool, error)
	ClearIfGeneration(ctx context.Context, gen uint64) (bool, error)
}

// Delay returns how long to wait before refreshing a token that expires at
// expiresAt (unix seconds): Lead before expiry, never less than Floor.
func Delay(now time.Time, expiresAt int64) time.Duration {
	d := time.Unix(expiresAt, 0).Sub(now) - Lead
	if d < Floor {
		return Floor
	}
	return d
}

// Scheduler arms a timer for the current session and runs refresh exchanges.
// It implements session.Scheduler.
type Scheduler struct {
	store     SessionStore
	exchanger Exchanger
	clock     clock.Clock
	timeout   time.Duration
	recorder  *telemetry.Recorder

	// flights holds at most one exchange at a time, whatever generation it serves.
	flights singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	next   time.Time
}

var _ session.Scheduler = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock timers are created on.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clk
	}
}

// WithTimeout bounds each exchange.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRecorder records refresh metrics and spans.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// NewScheduler creates a disarmed scheduler.
func NewScheduler(store SessionStore, exchanger Exchanger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		exchanger: exchanger,
		clock:     clock.RealClock{},
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm replaces any pending timer with one for sess. A session without an
// expiry leaves the scheduler disarmed.
func (s *Scheduler) Arm(sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()

	if sess.ExpiresAt == 0 {
		return
	}
	now := s.clock.Now()
	delay := Delay(now, sess.ExpiresAt)
	timer := s.clock.NewTimer(delay)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.next = now.Add(delay)

	logger.Debugw("refresh armed", "delay", delay.String(), "expires_at", sess.ExpiresAt)
	go s.wait(ctx, timer)
}

// Disarm cancels the pending timer, if any.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

// NextRefresh reports when the armed timer fires.
func (s *Scheduler) NextRefresh() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return time.Time{}, false
	}
	return s.next, true
}

func (s *Scheduler) disarmLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.next = time.Time{}
	}
}

func (s *Scheduler) wait(ctx context.Context, timer clock.Timer) {
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C():
	}

	// Arm and Disarm cancel under mu, so this check cannot race with them.
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.next = time.Time{}
	s.mu.Unlock()

	if _, err := s.refresh(context.Background(), s.store.Generation(), telemetry.TriggerTimer); err != nil {
		logger.Warnf("scheduled session refresh failed: %v", err)
	}
}

// RefreshNow exchanges the refresh credential for a new session. On failure
// the session is cleared and an UnauthorizedError is returned.
func (s *Scheduler) RefreshNow(ctx context.Context) (session.Session, error) {
	return s.refresh(ctx, s.store.Generation(), telemetry.TriggerManual)
}

// RefreshFrom refreshes on behalf of a request sent while the store was at
// generation seen. If the session has moved on since, the current session is
// returned without contacting the broker.
func (s *Scheduler) RefreshFrom(ctx context.Context, seen uint64) (session.Session, error) {
	return s.refresh(ctx, seen, telemetry.TriggerUnauthorized)
}

// flightResult tags an exchange result with the generation it was started for.
type flightResult struct {
	sess session.Session
	seen uint64
}

func (s *Scheduler) refresh(ctx context.Context, seen uint64, trigger string) (session.Session, error) {
	// the exchange outlives callers that stop waiting
	flightCtx := context.WithoutCancel(ctx)
	for {
		ch := s.flights.DoChan(flightKey, func() (any, error) {
			sess, err := s.exchange(flightCtx, seen, trigger)
			return flightResult{sess: sess, seen: seen}, err
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return session.Session{}, shderrors.NewNetworkError("stopped waiting for session refresh", ctx.Err())
		case res = <-ch:
		}

		flight := res.Val.(flightResult)
		if flight.seen != seen {
			// Joined an exchange started for another session. If ours is
			// still current it needs its own, which starts only now.
			if s.store.Generation() == seen {
				continue
			}
			return s.current()
		}
		if res.Err != nil {
			return session.Session{}, res.Err
		}
		return flight.sess, nil
	}
}

func (s *Scheduler) exchange(ctx context.Context, seen uint64, trigger string) (session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, end := s.recorder.StartRefresh(ctx, trigger)

	prev, gen, signedIn := s.store.Snapshot()
	if gen != seen {
		end(telemetry.OutcomeSkipped, nil)
		return s.current()
	}
	choice := s.store.Choice()
	if !signedIn {
		choice = session.Ephemeral
	}

	fresh, err := s.exchanger.Refresh(ctx)
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()
	if err != nil {
		cleared, clearErr := s.store.ClearIfGeneration(persistCtx, seen)
		if !cleared {
			logger.Debugw("discarding failed refresh for a replaced session", "generation", seen)
			end(telemetry.OutcomeStale, err)
			return s.current()
		}
		if clearErr != nil {
			logger.Warnf("failed to clear persisted session after refresh failure: %v", clearErr)
		}
		end(telemetry.OutcomeFailure, err)
		if shderrors.IsUnauthorized(err) {
			return session.Session{}, err
		}
		return session.Session{}, shderrors.NewUnauthorizedError("session refresh failed", err)
	}

	if fresh.User == nil && prev.User != nil {
		user := *prev.User
		fresh.User = &user
	}
	saved, err := s.store.SaveIfGeneration(persistCtx, seen, fresh, choice)
	if err != nil {
		end(telemetry.OutcomeFailure, err)
		return session.Session{}, shderrors.NewUnauthorizedError("failed to store refreshed session", err)
	}
	if !saved {
		logger.Debugw("discarding refresh result for a replaced session", "generation", seen)
		end(telemetry.OutcomeStale, nil)
		return s.current()
	}

	logger.Infow("session refreshed", "trigger", trigger, "token", logger.Fingerprint(fresh.AccessToken))
	end(telemetry.OutcomeSuccess, nil)
	return fresh, nil
}

func (s *Scheduler) current() (session.Session, error) {
	cur, _, ok := s.store.Snapshot()
	if !ok {
		return session.Session{}, shderrors.NewUnauthorizedError("signed out", nil)
	}
	return cur, nil
}
