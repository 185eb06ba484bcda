// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shiftdesk/shiftdesk/cmd/shiftdesk/app/ui"
	"github.com/shiftdesk/shiftdesk/pkg/records"
)

const collectionsHelp = "Collections: staff, shifts, timesheets, assignments."

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		Short:   "Manage broker records",
		Long:    "List, inspect and change staff, shift, timesheet and assignment records.\n\n" + collectionsHelp,
	}
	cmd.AddCommand(newRecordsListCmd())
	cmd.AddCommand(newRecordsGetCmd())
	cmd.AddCommand(newRecordsCreateCmd())
	cmd.AddCommand(newRecordsUpdateCmd())
	cmd.AddCommand(newRecordsDeleteCmd())
	return cmd
}

func newRecordsListCmd() *cobra.Command {
	var (
		filters []string
		columns []string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List records in a collection",
		Long:  "List records in a collection.\n\n" + collectionsHelp,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := records.ParseCollection(args[0])
			if err != nil {
				return err
			}
			query, err := parseFilters(filters)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			recs, err := client.List(ctx, coll, query)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", coll, err)
			}
			if format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			return ui.RenderRecords(cmd.OutOrStdout(), recs, columns)
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to show in text output")
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format (json or text)")
	return cmd
}

func newRecordsGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := records.ParseCollection(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			rec, err := client.Get(ctx, coll, args[1])
			if err != nil {
				return fmt.Errorf("failed to get %s %s: %w", coll, args[1], err)
			}
			return printRecord(cmd, format, rec)
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatText, "Output format (json or text)")
	return cmd
}

func newRecordsCreateCmd() *cobra.Command {
	var (
		data   string
		fields []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a record",
		Long: `Create a record from a JSON object (--data) and/or key=value pairs (--set).
Values given with --set are decoded as JSON when they parse, otherwise they are
sent as strings.`,
		Example: `  shiftdesk records create staff --set name="Ada Lovelace" --set hours=37.5`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := records.ParseCollection(args[0])
			if err != nil {
				return err
			}
			rec, err := buildRecord(data, fields)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			created, err := client.Create(ctx, coll, rec)
			if err != nil {
				return fmt.Errorf("failed to create %s record: %w", coll, err)
			}
			return printRecord(cmd, format, created)
		},
	}

	addRecordFlags(cmd, &data, &fields, &format)
	return cmd
}

func newRecordsUpdateCmd() *cobra.Command {
	var (
		data   string
		fields []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "update <collection> <id>",
		Short: "Update a record",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := records.ParseCollection(args[0])
			if err != nil {
				return err
			}
			rec, err := buildRecord(data, fields)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			updated, err := client.Update(ctx, coll, args[1], rec)
			if err != nil {
				return fmt.Errorf("failed to update %s %s: %w", coll, args[1], err)
			}
			return printRecord(cmd, format, updated)
		},
	}

	addRecordFlags(cmd, &data, &fields, &format)
	return cmd
}

func newRecordsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <collection> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := records.ParseCollection(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, done, err := newRecordsClient(ctx)
			if err != nil {
				return err
			}
			defer done()

			if err := client.Delete(ctx, coll, args[1]); err != nil {
				return fmt.Errorf("failed to delete %s %s: %w", coll, args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", coll, args[1])
			return nil
		},
	}
}

func addRecordFlags(cmd *cobra.Command, data *string, fields *[]string, format *string) {
	cmd.Flags().StringVar(data, "data", "", "Record fields as a JSON object")
	cmd.Flags().StringArrayVar(fields, "set", nil, "Field as key=value (repeatable)")
	cmd.Flags().StringVar(format, "format", FormatText, "Output format (json or text)")
}

func printRecord(cmd *cobra.Command, format string, rec records.Record) error {
	if format == FormatJSON {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	return ui.RenderRecord(cmd.OutOrStdout(), rec)
}

// parseFilters turns key=value pairs into a query.
func parseFilters(pairs []string) (url.Values, error) {
	query := url.Values{}
	for _, pair := range pairs {
		key, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		query.Add(key, value)
	}
	return query, nil
}

// buildRecord merges a JSON object with key=value pairs; pairs win.
func buildRecord(data string, pairs []string) (records.Record, error) {
	rec := records.Record{}
	if strings.TrimSpace(data) != "" {
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			rec[key] = decoded
		} else {
			rec[key] = value
		}
	}
	if len(rec) == 0 {
		return nil, fmt.Errorf("no fields given, use --data or --set")
	}
	return rec, nil
}

func splitPair(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid pair %q, expected key=value", pair)
	}
	return key, value, nil
}
