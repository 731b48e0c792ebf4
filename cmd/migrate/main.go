package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/redmonkez12/quick-flayer-api/internal/config"
	"github.com/redmonkez12/quick-flayer-api/internal/database"
)

const commandTimeout = 5 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the users database schema",
		Long:         "Apply, roll back or inspect the embedded goose migrations against the configured PostgreSQL database.",
		SilenceUsage: true,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  withDB("up", database.MigrateUp),
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  withDB("down", database.MigrateDown),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  withDB("status", database.MigrationStatus),
	}

	rootCmd.AddCommand(upCmd, downCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDB opens the database from the environment, runs fn, and closes it
func withDB(name string, fn func(context.Context, *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		cfg := config.LoadDatabase()

		cmd.Printf("Connecting to %s@%s:%s/%s...\n", cfg.User, cfg.Host, cfg.Port, cfg.DBName)
		db, err := database.OpenPostgres(ctx, cfg)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		defer db.Close()

		if err := fn(ctx, db); err != nil {
			return oops.Code("MIGRATION_FAILED").With("command", name).Wrap(err)
		}

		cmd.Printf("migrate %s completed\n", name)
		return nil
	}
}
