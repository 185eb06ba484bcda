// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"io"
	"time"
)

// SessionStatus is what "shiftdesk status" reports.
type SessionStatus struct {
	SignedIn    bool       `json:"signed_in"`
	Broker      string     `json:"broker"`
	User        string     `json:"user,omitempty"`
	Role        string     `json:"role,omitempty"`
	Persistence string     `json:"persistence,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	NextRefresh *time.Time `json:"next_refresh,omitempty"`
}

// RenderStatus renders the session status as property/value rows.
func RenderStatus(w io.Writer, st SessionStatus) error {
	rows := [][]string{
		{"Broker", st.Broker},
		{"Signed in", yesNo(st.SignedIn)},
	}
	if st.SignedIn {
		rows = append(rows,
			[]string{"User", orDash(st.User)},
			[]string{"Role", orDash(st.Role)},
			[]string{"Persistence", orDash(st.Persistence)},
			[]string{"Expires", formatTime(st.ExpiresAt)},
			[]string{"Next refresh", formatTime(st.NextRefresh)},
		)
	}
	return appendRows(newTable(w, []string{"Property", "Value"}), rows)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
