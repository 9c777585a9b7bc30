package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/database/seeders"
	"github.com/shashiranjanraj/catalog/internal/app"
	"github.com/shashiranjanraj/catalog/pkg/migration"
)

// withDB loads config, opens the configured database and closes it after fn.
func withDB(ctx context.Context, fn func(db *app.Database) error) error {
	if err := config.Load(); err != nil {
		return err
	}
	db, err := app.OpenDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close(context.Background()) //nolint:errcheck
	return fn(db)
}

// withMigrator is withDB for the relational drivers.
func withMigrator(cmd *cobra.Command, fn func(r *migration.Runner) error) error {
	return withDB(cmd.Context(), func(db *app.Database) error {
		g, err := db.RequireGorm()
		if err != nil {
			return err
		}
		return fn(migration.New(g).WithOutput(cmd.OutOrStdout()))
	})
}

// catalog migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
		return withMigrator(cmd, (*migration.Runner).Run)
	},
}

// catalog migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Rolling back last batch…")
		return withMigrator(cmd, (*migration.Runner).Rollback)
	},
}

// catalog migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(r *migration.Runner) error {
			return r.PrintStatus(cmd.OutOrStdout())
		})
	},
}

// catalog db:reset --force
var dbResetCmd = &cobra.Command{
	Use:   "db:reset",
	Short: "Drop every table or collection and recreate the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return errors.New("db:reset destroys all data; re-run with --force")
		}
		return withDB(cmd.Context(), func(db *app.Database) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Resetting %s database…\n", db.Driver)
			return db.Reset(cmd.Context(), cmd.OutOrStdout())
		})
	},
}

// catalog seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *app.Database) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
			return seeders.RunAll(cmd.Context(), db.Stores(), cmd.OutOrStdout())
		})
	},
}

func init() {
	dbResetCmd.Flags().Bool("force", false, "confirm that all data will be destroyed")
}
