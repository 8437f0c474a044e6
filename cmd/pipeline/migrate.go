package main

import (
	"errors"

	"github.com/NimaFathima/astrobiomers/pkg/logger"
	pgxstore "github.com/NimaFathima/astrobiomers/pkg/store/pgx"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the document corpus migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Postgres.URL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		if err := pgxstore.Migrate(cfg.Postgres.URL); err != nil {
			return err
		}
		logger.Info("[Corpus] Migrations applied")
		return nil
	},
}
