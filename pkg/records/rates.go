// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"context"
	"net/http"
	"strings"
	"time"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
)

// DateLayout is how the broker formats calendar dates.
const DateLayout = "2006-01-02"

// RateOverride replaces a staff member's pay rate from a given day.
type RateOverride struct {
	Rate          float64
	Reason        string
	EffectiveFrom time.Time
}

type rateOverrideBody struct {
	Rate          float64 `json:"rate"`
	Reason        string  `json:"reason"`
	EffectiveFrom string  `json:"effective_from"`
}

// Validate checks the override before it is sent.
func (o RateOverride) Validate() error {
	switch {
	case o.Rate <= 0:
		return shderrors.NewValidationError("rate must be positive", nil)
	case strings.TrimSpace(o.Reason) == "":
		return shderrors.NewValidationError("a reason is required for a rate override", nil)
	case o.EffectiveFrom.IsZero():
		return shderrors.NewValidationError("effective date is required", nil)
	}
	return nil
}

// SetRateOverride records a rate override for a staff member.
func (c *Client) SetRateOverride(ctx context.Context, staffID string, o RateOverride) (Record, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, shderrors.NewValidationError("staff id is required", nil)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint(nil, string(Staff), staffID, "rate-overrides"), rateOverrideBody{
		Rate:          o.Rate,
		Reason:        strings.TrimSpace(o.Reason),
		EffectiveFrom: o.EffectiveFrom.Format(DateLayout),
	})
	if err != nil {
		return nil, err
	}
	return parseRecord(body)
}
