package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/akirachix/mlimizone-backend/internal/repository/postgres"
)

func eventsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <topic> <key>",
		Short: "Print the recorded event history of one aggregate",
		Long: `Print the recorded event history of one aggregate, oldest first.

Events are keyed by the id of the aggregate they describe: payment events by
order id, booking events by order id, listing events by listing id.

Examples:
  mlimizone events payments.completed 42
  mlimizone events orders.booked 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, key := args[0], args[1]
			if topic == "" || key == "" {
				return errors.New("topic and key must not be empty")
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

			records, err := postgres.NewEventLog(db).LoadEvents(ctx, topic, key)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), topic, key, records)
			return nil
		},
	}
	return cmd
}

func printEvents(w io.Writer, topic, key string, records []postgres.EventRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No events for %s %s\n", topic, key)
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-18s %s\n", r.CreatedAt.UTC().Format(time.RFC3339), r.EventType, r.Payload)
	}
}
