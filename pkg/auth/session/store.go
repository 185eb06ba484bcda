// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

//go:generate mockgen -destination=mocks/mock_scheduler.go -package=mocks -source=store.go Scheduler

// Scheduler is re-armed on every save and disarmed on every clear.
type Scheduler interface {
	Arm(s Session)
	Disarm()
}

// EventKind describes what happened to the session.
type EventKind string

const (
	// EventSaved is emitted after a login or refresh replaced the session.
	EventSaved EventKind = "saved"
	// EventRestored is emitted when a persisted session was adopted at startup.
	EventRestored EventKind = "restored"
	// EventCleared is emitted after logout or a failed refresh.
	EventCleared EventKind = "cleared"
)

// Event is delivered to observers after every change of the current session.
type Event struct {
	Kind EventKind
	// Session is nil for EventCleared.
	Session *Session
	Choice  PersistenceChoice
	// Generation lets observers discard events that arrive out of order.
	Generation uint64
}

// Observer receives session events. Observers run synchronously on the
// goroutine that changed the session and must not call Save or Clear.
type Observer func(Event)

// Store holds the current session in memory and persists it into exactly one
// of two tiers.
type Store struct {
	durable   storage.Tier
	ephemeral storage.Tier

	// ioMu serializes tier writes and scheduler arming so they happen in
	// generation order.
	ioMu sync.Mutex

	mu         sync.RWMutex
	current    *Session
	choice     PersistenceChoice
	generation uint64
	scheduler  Scheduler
	observers  map[uint64]Observer
	nextID     uint64
}

// NewStore creates a store over the durable and ephemeral tiers.
func NewStore(durable, ephemeral storage.Tier) *Store {
	return &Store{
		durable:   durable,
		ephemeral: ephemeral,
		observers: make(map[uint64]Observer),
	}
}

// SetScheduler attaches the scheduler that is re-armed on every save.
func (s *Store) SetScheduler(scheduler Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = scheduler
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Current returns the in-memory session. It performs no I/O.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return s.current.clone(), true
}

// Snapshot returns the current session together with its generation, read atomically.
func (s *Store) Snapshot() (Session, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, s.generation, false
	}
	return s.current.clone(), s.generation, true
}

// Choice returns the persistence choice of the current session, or "" when signed out.
func (s *Store) Choice() PersistenceChoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.choice
}

// Generation returns the session generation. It increases on every save, restore and clear.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Save persists sess into the tier selected by choice, clears the other tier,
// replaces the in-memory session and re-arms the scheduler.
func (s *Store) Save(ctx context.Context, sess Session, choice PersistenceChoice) error {
	_, err := s.save(ctx, nil, sess, choice)
	return err
}

// SaveIfGeneration is Save, applied only while the store is still at generation gen.
// It reports whether the session was saved.
func (s *Store) SaveIfGeneration(ctx context.Context, gen uint64, sess Session, choice PersistenceChoice) (bool, error) {
	return s.save(ctx, &gen, sess, choice)
}

func (s *Store) save(ctx context.Context, expect *uint64, sess Session, choice PersistenceChoice) (bool, error) {
	if sess.AccessToken == "" {
		return false, shderrors.NewValidationError("access token is empty", nil)
	}
	if err := choice.Validate(); err != nil {
		return false, shderrors.NewValidationError("cannot save session", err)
	}
	sess = sess.clone()

	data, err := encodeRecord(sess, choice)
	if err != nil {
		return false, shderrors.NewInternalError("failed to encode session", err)
	}

	s.ioMu.Lock()
	if expect != nil && s.Generation() != *expect {
		s.ioMu.Unlock()
		return false, nil
	}

	target, other := s.tiersFor(choice)
	if err := target.Set(ctx, RecordKey, data); err != nil {
		s.ioMu.Unlock()
		return false, fmt.Errorf("failed to write session to %s tier: %w", target.Name(), err)
	}
	if err := other.Delete(ctx, RecordKey); err != nil {
		logger.Warnw("failed to clear inactive session tier", "tier", other.Name(), "error", err)
	}

	event := s.commit(EventSaved, &sess, choice)
	if sched := s.getScheduler(); sched != nil {
		sched.Arm(sess.clone())
	}
	s.ioMu.Unlock()

	logger.Debugw("session saved",
		"tier", target.Name(), "token", logger.Fingerprint(sess.AccessToken),
		"expires_at", sess.ExpiresAt, "generation", event.Generation)
	s.notify(event)
	return true, nil
}

// Load reads the persisted session, preferring the durable tier. A record that
// cannot be decoded is reported as no session; it is left in place.
func (s *Store) Load(ctx context.Context) (Session, PersistenceChoice, bool) {
	for _, choice := range []PersistenceChoice{Durable, Ephemeral} {
		tier, _ := s.tiersFor(choice)
		data, err := tier.Get(ctx, RecordKey)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Warnw("failed to read session tier", "tier", tier.Name(), "error", err)
			continue
		}

		sess, _, err := decodeRecord(data)
		if err != nil {
			logger.Warnw("ignoring unreadable session record",
				"tier", tier.Name(),
				"error", shderrors.NewDeserializationError("corrupt session record", err))
			return Session{}, "", false
		}
		return sess, choice, true
	}
	return Session{}, "", false
}

// Restore adopts the persisted session as the current one and arms the
// scheduler, without rewriting the tiers. It reports whether a session was found.
func (s *Store) Restore(ctx context.Context) bool {
	sess, choice, ok := s.Load(ctx)
	if !ok {
		return false
	}

	s.ioMu.Lock()
	event := s.commit(EventRestored, &sess, choice)
	if sched := s.getScheduler(); sched != nil {
		sched.Arm(sess.clone())
	}
	s.ioMu.Unlock()

	logger.Debugw("session restored", "choice", string(choice), "generation", event.Generation)
	s.notify(event)
	return true
}

// Clear removes the session from both tiers and from memory, and disarms the scheduler.
// Memory is cleared even when a tier delete fails; the errors are returned joined.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.clear(ctx, nil)
	return err
}

// ClearIfGeneration is Clear, applied only while the store is still at generation gen.
func (s *Store) ClearIfGeneration(ctx context.Context, gen uint64) (bool, error) {
	return s.clear(ctx, &gen)
}

func (s *Store) clear(ctx context.Context, expect *uint64) (bool, error) {
	s.ioMu.Lock()
	if expect != nil && s.Generation() != *expect {
		s.ioMu.Unlock()
		return false, nil
	}

	var errs []error
	for _, tier := range []storage.Tier{s.durable, s.ephemeral} {
		if err := tier.Delete(ctx, RecordKey); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear %s tier: %w", tier.Name(), err))
		}
	}

	event := s.commit(EventCleared, nil, "")
	if sched := s.getScheduler(); sched != nil {
		sched.Disarm()
	}
	s.ioMu.Unlock()

	logger.Debugw("session cleared", "generation", event.Generation)
	s.notify(event)
	return true, errors.Join(errs...)
}

// commit swaps the in-memory state under a single lock so readers never see
// a token paired with another session's expiry.
func (s *Store) commit(kind EventKind, sess *Session, choice PersistenceChoice) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	s.choice = choice
	s.generation++

	event := Event{Kind: kind, Choice: choice, Generation: s.generation}
	if sess != nil {
		cp := sess.clone()
		event.Session = &cp
	}
	return event
}

func (s *Store) getScheduler() Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

func (s *Store) notify(event Event) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.RUnlock()

	for _, o := range observers {
		o(event)
	}
}

func (s *Store) tiersFor(choice PersistenceChoice) (target, other storage.Tier) {
	if choice == Durable {
		return s.durable, s.ephemeral
	}
	return s.ephemeral, s.durable
}
