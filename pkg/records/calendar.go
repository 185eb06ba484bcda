// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"context"
	"net/url"
	"time"

	shderrors "github.com/shiftdesk/shiftdesk/pkg/errors"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
)

// MaxHeatLevel is the intensity of the busiest day in a heat map.
const MaxHeatLevel = 4

// shiftStartFields are tried in order to find when a shift starts.
var shiftStartFields = []string{"start", "starts_at", "start_time", "date"}

// DayHeat is the shift load of one day.
type DayHeat struct {
	Day    time.Time
	Shifts int
	// Level is 0 for an empty day and 1..MaxHeatLevel relative to the busiest day.
	Level int
}

// Calendar fetches the shifts between from and to (inclusive days) and builds
// their heat map.
func (c *Client) Calendar(ctx context.Context, from, to time.Time) ([]DayHeat, error) {
	if to.Before(from) {
		return nil, shderrors.NewValidationError("calendar end is before its start", nil)
	}
	query := url.Values{}
	query.Set("from", from.Format(DateLayout))
	query.Set("to", to.Format(DateLayout))

	shifts, err := c.List(ctx, Shifts, query)
	if err != nil {
		return nil, err
	}
	return HeatMap(shifts, from, to), nil
}

// HeatMap counts shifts per calendar day from from to to, in from's location.
// Shifts without a readable start, or outside the range, are ignored.
func HeatMap(shifts []Record, from, to time.Time) []DayHeat {
	loc := from.Location()
	first := truncateDay(from, loc)
	last := truncateDay(to, loc)
	if last.Before(first) {
		return nil
	}

	counts := map[time.Time]int{}
	for _, shift := range shifts {
		start, ok := shiftStart(shift, loc)
		if !ok {
			logger.Debugw("skipping shift without a start time", "id", shift.ID())
			continue
		}
		day := truncateDay(start, loc)
		if day.Before(first) || day.After(last) {
			continue
		}
		counts[day]++
	}

	busiest := 0
	for _, n := range counts {
		busiest = max(busiest, n)
	}

	var days []DayHeat
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		n := counts[day]
		days = append(days, DayHeat{Day: day, Shifts: n, Level: heatLevel(n, busiest)})
	}
	return days
}

// heatLevel buckets n into 1..MaxHeatLevel by its share of busiest, rounding up.
func heatLevel(n, busiest int) int {
	if n == 0 || busiest == 0 {
		return 0
	}
	return (n*MaxHeatLevel + busiest - 1) / busiest
}

func shiftStart(shift Record, loc *time.Location) (time.Time, bool) {
	for _, field := range shiftStartFields {
		raw := shift.String(field)
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.In(loc), true
		}
		if t, err := time.ParseInLocation(DateLayout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
