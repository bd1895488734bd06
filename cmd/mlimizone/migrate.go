package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akirachix/mlimizone-backend/internal/repository"
	"github.com/akirachix/mlimizone-backend/internal/repository/postgres"
)

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema and seed the crop list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.StorageBackend != "postgres" {
				return errPostgresOnly
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewStore(db).Catalog.SeedCrops(ctx, repository.DefaultCrops); err != nil {
				return fmt.Errorf("failed to seed crops: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}
