package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
	"github.com/akirachix/mlimizone-backend/internal/repository/postgres"
)

func setPriceCmd(load loader) *cobra.Command {
	var (
		crop   string
		region string
		price  float64
	)

	cmd := &cobra.Command{
		Use:   "set-price",
		Short: "Set the market price per KG of a crop in a region",
		Long: `Set the market price per KG of a crop in a region.

Examples:
  mlimizone set-price --crop Maize --region "Southern Region" --price 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if crop == "" || region == "" {
				return errors.New("--crop and --region are required")
			}
			if !(price > 0) {
				return errors.New("--price must be above 0")
			}

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

			catalog := postgres.NewStore(db).Catalog
			if err := catalog.SeedCrops(ctx, repository.DefaultCrops); err != nil {
				return fmt.Errorf("failed to seed crops: %w", err)
			}
			if err := catalog.UpsertPrice(ctx, crop, region, price); err != nil {
				return fmt.Errorf("failed to set price: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s in %s: %s %s/kg\n", crop, region, entity.FormatAmount(price), entity.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&crop, "crop", "", "crop name, e.g. Maize")
	cmd.Flags().StringVar(&region, "region", "", "market region, e.g. \"Southern Region\"")
	cmd.Flags().Float64Var(&price, "price", 0, "price per KG")
	return cmd
}
