// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/shiftdesk/shiftdesk/pkg/records"
)

// maxDefaultColumns caps the columns picked when the caller names none.
const maxDefaultColumns = 6

// RenderRecords renders records as a table with the given columns. With no
// columns, id comes first followed by the other field names in order.
func RenderRecords(w io.Writer, recs []records.Record, columns []string) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}
	if len(columns) == 0 {
		columns = DefaultColumns(recs)
	}

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = rec.String(col)
		}
		rows = append(rows, row)
	}
	return appendRows(newTable(w, columns), rows)
}

// RenderRecord renders a single record as field/value rows.
func RenderRecord(w io.Writer, rec records.Record) error {
	fields := make([]string, 0, len(rec))
	for name := range rec {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	rows := make([][]string, 0, len(fields))
	for _, name := range fields {
		rows = append(rows, []string{name, rec.String(name)})
	}
	return appendRows(newTable(w, []string{"Field", "Value"}), rows)
}

// DefaultColumns picks the columns shown when none are requested.
func DefaultColumns(recs []records.Record) []string {
	seen := map[string]bool{}
	var names []string
	for _, rec := range recs {
		for name := range rec {
			if name == "id" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	columns := []string{"id"}
	for _, name := range names {
		if len(columns) == maxDefaultColumns {
			break
		}
		columns = append(columns, name)
	}
	return columns
}
