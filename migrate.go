package main

import (
	"fmt"

	"github.com/hermod-app/hermod/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	},
}
