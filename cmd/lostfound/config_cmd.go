// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lostfound/lostfound/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [PATH]",
		Short: "Check a config file against the schema",
		Long: `Check a config file against the schema. Defaults to --config, then
the XDG config path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := configPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}
			data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
			if err != nil {
				return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
			}
			if err := config.ValidateYAML(data); err != nil {
				return err
			}
			cmd.Printf("%s is valid\n", path)
			return nil
		},
	})

	return cmd
}
