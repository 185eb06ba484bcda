// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shiftdesk/shiftdesk/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage shiftdesk configuration",
		Long: "View and change the shiftdesk configuration file.\n\nFields: " +
			strings.Join(config.ListConfigFields(), ", "),
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := config.NewLocalStore(viper.GetString("config"))
			if err != nil {
				return err
			}
			cfg, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cfg.Storage.Redis.Password != "" {
				cfg.Storage.Redis.Password = "********"
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", store.Path(), data)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <field>",
		Short: "Print one configuration field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := config.GetConfigField(args[0])
			if err != nil {
				return err
			}
			store, err := config.NewLocalStore(viper.GetString("config"))
			if err != nil {
				return err
			}
			cfg, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), spec.Getter(cfg))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <field> <value>",
		Short:   "Set a configuration field",
		Example: `  shiftdesk config set broker-url https://broker.example.com`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd, func(cfg *config.Config) error {
				return config.SetField(cfg, args[0], args[1])
			})
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <field>",
		Short: "Reset a configuration field to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd, func(cfg *config.Config) error {
				return config.UnsetField(cfg, args[0])
			})
		},
	}
}

func updateConfig(cmd *cobra.Command, fn func(*config.Config) error) error {
	store, err := config.NewLocalStore(viper.GetString("config"))
	if err != nil {
		return err
	}
	if err := store.Update(cmd.Context(), fn); err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", store.Path())
	return nil
}
