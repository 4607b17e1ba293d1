package main

import (
	"fmt"

	"github.com/atendimentobr/atendimento-api/internal/config"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/infra/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg := config.Load()
			if dsn == "" {
				dsn = cfg.DatabaseURL
			}

			logger := observability.NewLogger(cfg.LogLevel)
			defer logger.Sync()

			db, err := postgres.Open(dsn, logger)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := postgres.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			logger.Info("schema migrated")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to DATABASE_URL)")
	return cmd
}
