// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
)

// DefaultTTL is assumed when the broker reports no lifetime for a token.
const DefaultTTL = 3600 * time.Second

// The broker has shipped several response shapes over time; the first path
// that matches wins.
var (
	tokenPaths     = []string{"token", "access_token", "accessToken", "data.token", "data.access_token"}
	expiresAtPaths = []string{"expires_at", "expiresAt", "data.expires_at"}
	ttlPaths       = []string{"expires_in", "expiresIn", "ttl", "data.expires_in"}
	userPaths      = []string{"user", "profile", "data.user"}
)

var errNoToken = errors.New("response carries no access token")

// parseGrant turns a login or refresh response body into a session.
// User is nil when the response carries no profile.
func parseGrant(body []byte, now time.Time) (session.Session, error) {
	if !gjson.ValidBytes(body) {
		return session.Session{}, errors.New("response is not valid JSON")
	}

	token := firstString(body, tokenPaths)
	if token == "" {
		return session.Session{}, errNoToken
	}

	return session.Session{
		AccessToken: token,
		User:        parseProfile(body),
		ExpiresAt:   expiryFor(body, token, now),
	}, nil
}

func expiryFor(body []byte, token string, now time.Time) int64 {
	if v, ok := firstPositive(body, expiresAtPaths); ok {
		return v
	}
	if ttl, ok := firstPositive(body, ttlPaths); ok {
		return now.Add(time.Duration(ttl) * time.Second).Unix()
	}
	if exp, ok := jwtExpiry(token); ok {
		return exp
	}
	return now.Add(DefaultTTL).Unix()
}

// jwtExpiry reads the exp claim without verifying the signature; the client
// only uses it for scheduling, never for trust decisions.
func jwtExpiry(token string) (int64, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}

func parseProfile(body []byte) *session.Profile {
	for _, path := range userPaths {
		res := gjson.GetBytes(body, path)
		if !res.IsObject() {
			continue
		}
		// gjson's String() renders numeric ids as well
		return &session.Profile{
			ID:    firstField(res, "id", "user_id"),
			Email: firstField(res, "email"),
			Name:  firstField(res, "name", "full_name", "display_name"),
			Role:  firstField(res, "role"),
		}
	}
	return nil
}

func firstField(obj gjson.Result, names ...string) string {
	for _, name := range names {
		if v := obj.Get(name); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstString(body []byte, paths []string) string {
	for _, path := range paths {
		if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return ""
}

func firstPositive(body []byte, paths []string) (int64, bool) {
	for _, path := range paths {
		res := gjson.GetBytes(body, path)
		if !res.Exists() {
			continue
		}
		if v := res.Int(); v > 0 {
			return v, true
		}
	}
	return 0, false
}
