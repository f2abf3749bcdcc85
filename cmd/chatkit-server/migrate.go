package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatkit/pkg/config"
	"github.com/rhuss/chatkit/pkg/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadStorage(configPath)
		if err != nil {
			return err
		}
		if cfg.Storage.Type != "postgres" {
			return fmt.Errorf("migrate requires storage.type \"postgres\", got %q", cfg.Storage.Type)
		}

		store, err := postgres.New(cmd.Context(), postgres.Config{
			DSN:      cfg.Storage.Postgres.DSN,
			MaxConns: 2,
		})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		slog.Info("migrations applied")
		return nil
	},
}
