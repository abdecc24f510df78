package main

import (
	"context"

	"github.com/spf13/cobra"

	"asset-scan/internal/container"
	"asset-scan/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Создать схему справочника активов",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()

		repo, db, err := container.OpenSQL(ctx, cfg.Database, logging.Log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		logging.Log.WithField("driver", cfg.Database.Driver).Info("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
