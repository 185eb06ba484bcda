// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the shiftdesk command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shiftdesk/shiftdesk/pkg/logger"
)

// NewRootCmd creates a new root command for the shiftdesk CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "shiftdesk",
		DisableAutoGenTag: true,
		Short:             "shiftdesk manages staff, shifts and timesheets from the command line",
		Long: `shiftdesk is a command-line client for the shiftdesk workforce broker.

Sign in once with "shiftdesk login". With --stay-signed-in the session is kept
across runs and refreshed automatically before it expires; otherwise it lasts
until you sign out or the machine restarts.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the shiftdesk config file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}
	rootCmd.PersistentFlags().String("broker-url", "", "Broker URL, overriding the config file")
	if err := viper.BindPFlag("broker-url", rootCmd.PersistentFlags().Lookup("broker-url")); err != nil {
		logger.Errorf("Error binding broker-url flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newPasswordCmd())
	rootCmd.AddCommand(newRecordsCmd())
	rootCmd.AddCommand(newRatesCmd())
	rootCmd.AddCommand(newCalendarCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
