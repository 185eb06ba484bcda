// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftdesk/shiftdesk/pkg/records"
)

func newRatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage staff pay rates",
	}
	cmd.AddCommand(newRatesSetCmd())
	return cmd
}

func newRatesSetCmd() *cobra.Command {
	var (
		rate   float64
		reason string
		from   string
		format string
	)

	cmd := &cobra.Command{
		Use:     "set <staff-id>",
		Short:   "Override a staff member's pay rate",
		Example: `  shiftdesk rates set 42 --rate 31.5 --reason "night cover" --from 2025-04-01`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			effective := time.Now()
			if from != "" {
				var err error
				if effective, err = time.ParseInLocation(records.DateLayout, from, time.Local); err != nil {
					return fmt.Errorf("invalid --from date %q, expected YYYY-MM-DD", from)
				}
			}
			override := records.RateOverride{Rate: rate, Reason: reason, EffectiveFrom: effective}
			if err := override.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			rec, err := client.SetRateOverride(ctx, args[0], override)
			if err != nil {
				return fmt.Errorf("failed to set rate for staff %s: %w", args[0], err)
			}
			return printRecord(cmd, format, rec)
		},
	}

	cmd.Flags().Float64Var(&rate, "rate", 0, "New hourly rate")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the rate is overridden")
	cmd.Flags().StringVar(&from, "from", "", "First day the rate applies (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format (json or text)")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
