// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shiftdesk/shiftdesk/cmd/shiftdesk/app/ui"
	"github.com/shiftdesk/shiftdesk/pkg/auth"
	"github.com/shiftdesk/shiftdesk/pkg/auth/session"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
)

func newLoginCmd() *cobra.Command {
	var (
		email        string
		staySignedIn bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the broker",
		Long: `Sign in to the broker with your email and password.

The password is read from stdin when it is piped, otherwise it is prompted for.
With --stay-signed-in=false the session is forgotten when the machine restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, cfg, err := newAuthClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if !cmd.Flags().Changed("stay-signed-in") {
				staySignedIn = cfg.StaySignedIn
			}
			if email == "" {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("--email is required when the password is piped")
				}
				if email, err = readLine(os.Stdin, cmd.ErrOrStderr(), "Email: "); err != nil {
					return err
				}
			}
			password, err := readSecret(os.Stdin, cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}

			sess, err := client.Login(ctx, email, password, staySignedIn)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			name := email
			if sess.User != nil && sess.User.Name != "" {
				name = sess.User.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", name, choiceLabel(client.Choice()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().BoolVar(&staySignedIn, "stay-signed-in", true,
		"Keep the session across restarts (defaults to the stay-signed-in config value)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, _, err := newAuthClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if err := client.Logout(ctx); err != nil {
				return fmt.Errorf("signed out, but stored credentials could not all be removed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := newAuthClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient(client)

			st := sessionStatus(client)
			if format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			return ui.RenderStatus(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatText, "Output format (json or text)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var forceRefresh bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Print the current access token for use with other tools.

An expired token is refreshed first. Use --refresh to refresh unconditionally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, _, err := newAuthClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			sess, ok := client.Current()
			if !ok {
				return fmt.Errorf("not signed in, run \"shiftdesk login\" first")
			}
			if forceRefresh || sess.Expired(time.Now()) {
				if sess, err = client.Refresh(ctx); err != nil {
					return fmt.Errorf("failed to refresh session: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.AccessToken)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceRefresh, "refresh", false, "Refresh the token before printing it")
	return cmd
}

func sessionStatus(client *auth.Client) ui.SessionStatus {
	st := ui.SessionStatus{Broker: client.BaseURL().String()}
	sess, ok := client.Current()
	if !ok {
		return st
	}

	st.SignedIn = true
	st.Persistence = string(client.Choice())
	if sess.User != nil {
		st.User = sess.User.Email
		if st.User == "" {
			st.User = sess.User.Name
		}
		st.Role = sess.User.Role
	}
	if exp := sess.Expiry(); !exp.IsZero() {
		st.ExpiresAt = &exp
	}
	if next, ok := client.NextRefresh(); ok {
		st.NextRefresh = &next
	}
	return st
}

func closeClient(client *auth.Client) {
	if err := client.Close(); err != nil {
		logger.Debugw("failed to close session storage", "error", err)
	}
}

// choiceLabel is used by commands that report where a session lives.
func choiceLabel(c session.PersistenceChoice) string {
	if c == "" {
		return "signed out"
	}
	return string(c)
}
