// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lostfound/lostfound/internal/config"
	"github.com/lostfound/lostfound/internal/store"
)

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// DatabaseURLGetter returns the database URL.
	// Default: getDatabaseURL
	DatabaseURLGetter func() (string, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(dsn string) (SchemaMigrator, error)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.DatabaseURLGetter == nil {
		deps.DatabaseURLGetter = getDatabaseURL
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(dsn string) (SchemaMigrator, error) {
			return store.NewMigrator(dsn)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back and inspect the users and sessions schema.
Reads the database URL from DATABASE_URL.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m SchemaMigrator, _ []string) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return printStatus(cmd, m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Long:  `Roll back every migration, dropping the users and sessions tables.`,
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m SchemaMigrator, _ []string) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m SchemaMigrator, _ []string) error {
			return printStatus(cmd, m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Long: `Set the recorded schema version without running any migration.
Use after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(deps, func(cmd *cobra.Command, m SchemaMigrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced schema version to %d\n", version)
			return nil
		}),
	})

	return cmd
}

// withMigrator opens a migrator for the duration of fn.
func withMigrator(deps *MigrateDeps, fn func(*cobra.Command, SchemaMigrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		dsn, err := deps.DatabaseURLGetter()
		if err != nil {
			return err
		}
		m, err := deps.MigratorFactory(dsn)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, m, args)
	}
}

func printStatus(cmd *cobra.Command, m SchemaMigrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}

	current := "none"
	if st.Version > 0 {
		current = fmt.Sprintf("%d", st.Version)
		if name, _ := store.MigrationName(st.Version); name != "" { //nolint:errcheck // name is cosmetic
			current = name
		}
	}
	cmd.Printf("Current version: %s", current)
	if st.Dirty {
		cmd.Print(" (dirty)")
	}
	cmd.Println()

	if len(st.Pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Println("Pending migrations:")
	for _, v := range st.Pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

// parseForceVersion reads the leading integer of s. Range checks are left
// to the migrator.
func parseForceVersion(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

// getDatabaseURL reads DATABASE_URL from the environment.
func getDatabaseURL() (string, error) {
	databaseURL := os.Getenv(config.EnvDatabaseURL)
	if databaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}
	return databaseURL, nil
}
