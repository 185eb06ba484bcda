// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package records reads and writes staffing records through the broker.
// Requests go through the authenticated HTTP client of an auth.Client.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
)

// Collection names a kind of staffing record.
type Collection string

// Known collections.
const (
	Staff       Collection = "staff"
	Shifts      Collection = "shifts"
	Timesheets  Collection = "timesheets"
	Assignments Collection = "assignments"
)

// Collections lists every known collection.
var Collections = []Collection{Staff, Shifts, Timesheets, Assignments}

// ParseCollection validates a collection name.
func ParseCollection(name string) (Collection, error) {
	c := Collection(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(Collections, c) {
		return "", shderrors.NewValidationError(
			fmt.Sprintf("unknown collection %q (valid: %v)", name, Collections), nil)
	}
	return c, nil
}

// Record is a single staffing record as the broker returns it.
type Record map[string]any

// ID returns the record id, rendering numeric ids without a fraction.
func (r Record) ID() string {
	return stringValue(r["id"])
}

// String returns field name as a string, or "" when it is absent.
func (r Record) String(name string) string {
	return stringValue(r[name])
}

func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

const maxBodySize = 8 << 20

// Client is a records API client.
type Client struct {
	http *http.Client
	base *url.URL
}

// NewClient creates a client for the broker at base. hc should authenticate
// its requests; auth.Client.HTTPClient returns such a client.
func NewClient(hc *http.Client, base *url.URL) *Client {
	return &Client{http: hc, base: base}
}

// List returns the records of a collection. query is passed through to the broker.
func (c *Client) List(ctx context.Context, coll Collection, query url.Values) ([]Record, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint(query, string(coll)), nil)
	if err != nil {
		return nil, err
	}
	return parseList(body)
}

// Get returns one record.
func (c *Client) Get(ctx context.Context, coll Collection, id string) (Record, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint(nil, string(coll), id), nil)
	if err != nil {
		return nil, err
	}
	return parseRecord(body)
}

// Create stores a new record and returns it as the broker saved it.
func (c *Client) Create(ctx context.Context, coll Collection, rec Record) (Record, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoint(nil, string(coll)), rec)
	if err != nil {
		return nil, err
	}
	return parseRecord(body)
}

// Update replaces a record.
func (c *Client) Update(ctx context.Context, coll Collection, id string, rec Record) (Record, error) {
	body, err := c.do(ctx, http.MethodPut, c.endpoint(nil, string(coll), id), rec)
	if err != nil {
		return nil, err
	}
	return parseRecord(body)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, coll Collection, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.endpoint(nil, string(coll), id), nil)
	return err
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.base.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, shderrors.NewValidationError("record cannot be encoded", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, shderrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// the gate already classified the failure
		if shderrors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, shderrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, endpoint), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, shderrors.NewNetworkError("failed to read response", err)
	}
	if err := statusError(method, req.URL.Path, resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

func statusError(method, path string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Sprintf("%s %s: %s", method, path, message(body, http.StatusText(status)))
	switch status {
	case http.StatusUnauthorized:
		return shderrors.NewUnauthorizedError(msg, nil)
	case http.StatusNotFound:
		return shderrors.NewNotFoundError(msg, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return shderrors.NewValidationError(msg, nil)
	default:
		return shderrors.NewBrokerError(fmt.Sprintf("%s (status %d)", msg, status), nil)
	}
}

func message(body []byte, fallback string) string {
	for _, path := range []string{"message", "error", "detail"} {
		if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return fallback
}

// parseList accepts a bare array or one wrapped as {"data": [...]}.
func parseList(body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, shderrors.NewDeserializationError("list response is not valid JSON", nil)
	}
	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		list = list.Get("data")
	}
	if !list.IsArray() {
		return nil, shderrors.NewDeserializationError("list response carries no records", nil)
	}

	out := make([]Record, 0, len(list.Array()))
	for _, item := range list.Array() {
		if rec, ok := item.Value().(map[string]any); ok {
			out = append(out, Record(rec))
		}
	}
	return out, nil
}

// parseRecord accepts a bare object or one wrapped as {"data": {...}}.
// An empty body, as some brokers send for writes, yields an empty record.
func parseRecord(body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Record{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, shderrors.NewDeserializationError("record response is not valid JSON", nil)
	}
	res := gjson.ParseBytes(body)
	if data := res.Get("data"); data.IsObject() && !res.Get("id").Exists() {
		res = data
	}
	rec, ok := res.Value().(map[string]any)
	if !ok {
		return nil, shderrors.NewDeserializationError("record response is not an object", nil)
	}
	return Record(rec), nil
}
