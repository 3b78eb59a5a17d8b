package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply record store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.Connect(ctx, a.databaseConfig(), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.NewMigrationService(a.logger, a.migrationConfig()).MigratePostgres(db, a.cfg.DatabaseName)
		},
	}
}
