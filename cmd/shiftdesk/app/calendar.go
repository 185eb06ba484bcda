// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftdesk/shiftdesk/cmd/shiftdesk/app/ui"
	"github.com/shiftdesk/shiftdesk/pkg/records"
)

// defaultCalendarDays is the range shown when --to is omitted.
const defaultCalendarDays = 14

func newCalendarCmd() *cobra.Command {
	var (
		from   string
		to     string
		format string
	)

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show shift load per day as a heat map",
		Long: `Show how many shifts start on each day in a range, shaded from idle to the
busiest day in the range.`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := calendarRange(time.Now(), from, to)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			days, err := client.Calendar(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to load calendar: %w", err)
			}
			if format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), days)
			}
			return ui.RenderCalendar(cmd.OutOrStdout(), days)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD, default two weeks after --from)")
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format (json or text)")
	return cmd
}

// calendarRange resolves the --from and --to flags in local time.
func calendarRange(now time.Time, from, to string) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if from != "" {
		t, err := time.ParseInLocation(records.DateLayout, from, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q, expected YYYY-MM-DD", from)
		}
		start = t
	}

	end := start.AddDate(0, 0, defaultCalendarDays-1)
	if to != "" {
		t, err := time.ParseInLocation(records.DateLayout, to, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q, expected YYYY-MM-DD", to)
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return start, end, nil
}
