package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akirachix/mlimizone-backend/internal/config"
	"github.com/akirachix/mlimizone-backend/internal/observability"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mlimizone",
		Short:         "MlimiZone USSD crop marketplace backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./mlimizone.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		observability.Init(os.Stdout, cfg.LogLevel)
		return cfg, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(sweepCmd(load))
	rootCmd.AddCommand(setPriceCmd(load))
	rootCmd.AddCommand(eventsCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)
