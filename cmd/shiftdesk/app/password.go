// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}
	cmd.AddCommand(newPasswordForgotCmd())
	cmd.AddCommand(newPasswordResetCmd())
	return cmd
}

func newPasswordForgotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot <email>",
		Short: "Ask the broker to email a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := newAuthClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if err := client.Forgot(ctx, args[0]); err != nil {
				return fmt.Errorf("password reset request failed: %w", err)
			}
			// The same message is printed whether or not the account exists.
			fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for that email, a reset link is on its way.")
			return nil
		},
	}
}

func newPasswordResetCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password using the token from a reset link",
		Long: `Set a new password using the token from a reset link.

The new password is read from stdin when it is piped, otherwise it is prompted
for twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			password, err := readNewPassword(cmd)
			if err != nil {
				return err
			}

			client, _, err := newAuthClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if err := client.ResetPassword(ctx, token, password); err != nil {
				return fmt.Errorf("password reset failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with \"shiftdesk login\".")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Reset token from the emailed link")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func readNewPassword(cmd *cobra.Command) (string, error) {
	password, err := readSecret(os.Stdin, cmd.ErrOrStderr(), "New password: ")
	if err != nil {
		return "", err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return password, nil
	}
	confirm, err := readSecret(os.Stdin, cmd.ErrOrStderr(), "Confirm password: ")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
