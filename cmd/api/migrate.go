package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/notesapp/notes-api/internal/config"
	"github.com/notesapp/notes-api/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the MySQL schema",
	}

	cmd.AddCommand(
		migrateSubcommand("up", "Apply all pending migrations", repository.Migrate),
		migrateSubcommand("down", "Roll back the latest migration", repository.MigrateDown),
		migrateSubcommand("status", "Print applied and pending migrations", repository.MigrationStatus),
	)
	return cmd
}

func migrateSubcommand(use, short string, run func(context.Context, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := repository.NewDB(ctx, config.DatabaseDSN())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := run(ctx, db); err != nil {
				return err
			}
			slog.Info("migrate finished", "command", use)
			return nil
		},
	}
}
