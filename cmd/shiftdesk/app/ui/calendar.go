// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/shiftdesk/shiftdesk/pkg/records"
)

// heatGlyphs is indexed by heat level.
var heatGlyphs = [records.MaxHeatLevel + 1]string{"·", "░", "▒", "▓", "█"}

// HeatBar draws a heat level as a fixed width bar.
func HeatBar(level int) string {
	level = max(0, min(level, records.MaxHeatLevel))
	if level == 0 {
		return heatGlyphs[0]
	}
	return strings.Repeat(heatGlyphs[level], level)
}

// RenderCalendar renders one row per day with its shift count and heat bar.
func RenderCalendar(w io.Writer, days []records.DayHeat) error {
	if len(days) == 0 {
		fmt.Fprintln(w, "No days in range.")
		return nil
	}

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Day.Format(records.DateLayout),
			d.Day.Weekday().String()[:3],
			fmt.Sprintf("%d", d.Shifts),
			HeatBar(d.Level),
		})
	}
	return appendRows(newTable(w, []string{"Date", "Day", "Shifts", "Load"}), rows)
}
