package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func sweepCmd(load loader) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-payments",
		Short: "Mark pending payments older than a cutoff as failed",
		Long: `Mark pending payments older than a cutoff as failed.

Their orders stay unpaid, so the wholesaler can pay again. A success callback
that arrives afterwards is logged for manual follow-up.

Examples:
  mlimizone sweep-payments
  mlimizone sweep-payments --older-than 30m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.StorageBackend != "postgres" {
				return errPostgresOnly
			}
			if olderThan <= 0 {
				olderThan = cfg.PaymentExpiry
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			expired, err := a.payments.ExpireStale(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d pending payments as failed\n", len(expired))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of pending payments to fail (default payment_expiry)")
	return cmd
}
