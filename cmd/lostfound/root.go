// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/lostfound/lostfound/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the lostfound CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lostfound",
		Short: "lostfound - community lost and found board",
		Long: `lostfound runs the account and session API behind the community
lost and found board: registration, login, session restore and logout.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/lostfound/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// configPath returns the config file to load and whether it must exist.
// An explicit --config must exist; the XDG default is optional.
func configPath() (string, bool, error) {
	if configFile != "" {
		return configFile, true, nil
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return "", false, err
	}
	return path, false, nil
}
