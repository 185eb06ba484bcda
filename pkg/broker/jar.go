// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/shiftdesk/shiftdesk/pkg/logger"
	"github.com/shiftdesk/shiftdesk/pkg/storage"
)

// CookiesKey is the key the broker cookies are stored under in a tier.
const CookiesKey = "cookies"

// storedCookie keeps the attributes the jar needs to scope a cookie again
// after a restart.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) key() string {
	return s.Domain + ";" + s.Path + ";" + s.Name
}

func (s storedCookie) expired(now time.Time) bool {
	return !s.Expires.IsZero() && !s.Expires.After(now)
}

func (s storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HttpOnly,
	}
}

// Jar is a cookie jar whose broker cookies, including the refresh credential,
// are mirrored into a storage tier so a restarted client can still refresh.
// It persists into the tier chosen by Bind, mirroring where the session lives.
type Jar struct {
	base *url.URL
	// tiers are searched in order on startup
	tiers []storage.Tier

	mu  sync.Mutex
	jar *cookiejar.Jar
	// saved holds the broker cookies as they were set, keyed by domain, path and name.
	saved map[string]storedCookie
	// epoch is bumped by Reset. Responses to requests sent before it carry
	// credentials that were revoked locally and are dropped.
	epoch  uint64
	target storage.Tier
	other  storage.Tier
}

var _ http.CookieJar = (*Jar)(nil)

// NewJar creates a jar for the broker at base and restores cookies from the
// first tier that holds them.
func NewJar(ctx context.Context, base *url.URL, tiers ...storage.Tier) (*Jar, error) {
	inner, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	j := &Jar{base: base, tiers: tiers, jar: inner, saved: map[string]storedCookie{}}

	now := time.Now()
	for _, tier := range tiers {
		stored, err := readCookies(ctx, tier)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Warnw("ignoring unreadable broker cookies", "tier", tier.Name(), "error", err)
			continue
		}
		cookies := make([]*http.Cookie, 0, len(stored))
		for _, s := range stored {
			if s.expired(now) {
				continue
			}
			j.saved[s.key()] = s
			cookies = append(cookies, s.cookie())
		}
		inner.SetCookies(base, cookies)
		j.target = tier
		break
	}
	return j, nil
}

// SetCookies implements http.CookieJar and persists broker cookies.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setCookiesLocked(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Pinned returns a view of the jar for a single request. Cookies it receives
// after Reset has run are dropped, so a response that was in flight during a
// logout cannot restore the credential.
func (j *Jar) Pinned() http.CookieJar {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &pinnedJar{jar: j, epoch: j.epoch}
}

// Bind makes target the tier cookies are persisted into and removes them from other.
func (j *Jar) Bind(ctx context.Context, target, other storage.Tier) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.target, j.other = target, other
	j.persistLocked(ctx)
}

// Reset drops every cookie, including the refresh credential, and removes the
// persisted copies.
func (j *Jar) Reset(ctx context.Context) error {
	inner, err := newCookieJar()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = inner
	j.saved = map[string]storedCookie{}
	j.epoch++
	j.target, j.other = nil, nil

	var errs []error
	for _, tier := range j.tiers {
		if err := tier.Delete(ctx, CookiesKey); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove cookies from %s tier: %w", tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (j *Jar) setCookiesLocked(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}

	now := time.Now()
	for _, c := range cookies {
		s := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if s.Path == "" || !strings.HasPrefix(s.Path, "/") {
			s.Path = defaultPath(u.Path)
		}
		switch {
		case c.MaxAge < 0:
			s.Expires = now
		case c.MaxAge > 0:
			s.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		if s.expired(now) {
			delete(j.saved, s.key())
			continue
		}
		j.saved[s.key()] = s
	}
	j.persistLocked(context.Background())
}

func (j *Jar) persistLocked(ctx context.Context) {
	if j.target == nil {
		return
	}
	now := time.Now()
	stored := make([]storedCookie, 0, len(j.saved))
	for key, s := range j.saved {
		if s.expired(now) {
			delete(j.saved, key)
			continue
		}
		stored = append(stored, s)
	}
	sort.Slice(stored, func(a, b int) bool { return stored[a].key() < stored[b].key() })

	data, err := json.Marshal(stored)
	if err != nil {
		logger.Warnf("failed to encode broker cookies: %v", err)
		return
	}
	if err := j.target.Set(ctx, CookiesKey, data); err != nil {
		logger.Warnw("failed to persist broker cookies", "tier", j.target.Name(), "error", err)
	}
	if j.other != nil {
		if err := j.other.Delete(ctx, CookiesKey); err != nil {
			logger.Warnw("failed to clear broker cookies", "tier", j.other.Name(), "error", err)
		}
	}
}

// pinnedJar is the jar as seen by one request.
type pinnedJar struct {
	jar   *Jar
	epoch uint64
}

func (p *pinnedJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.jar.mu.Lock()
	defer p.jar.mu.Unlock()
	if p.epoch != p.jar.epoch {
		logger.Debugw("dropping cookies from a response to a request sent before sign out", "host", u.Host)
		return
	}
	p.jar.setCookiesLocked(u, cookies)
}

func (p *pinnedJar) Cookies(u *url.URL) []*http.Cookie {
	return p.jar.Cookies(u)
}

// defaultPath is the cookie path used when Set-Cookie names none (RFC 6265 5.1.4).
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func readCookies(ctx context.Context, tier storage.Tier) ([]storedCookie, error) {
	data, err := tier.Get(ctx, CookiesKey)
	if err != nil {
		return nil, err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}
	for i := range stored {
		if stored[i].Path == "" {
			stored[i].Path = "/"
		}
	}
	return stored, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}
