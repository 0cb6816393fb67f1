package main

import (
	"github.com/spf13/cobra"

	"ecoledger/internal/platform/postgres"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, a.cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "schema applied")
			return nil
		},
	}
}
