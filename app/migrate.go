package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/internal/daemon"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the database schema and seed defaults, then exit",
	PreRun: func(_ *cobra.Command, _ []string) {
		loadConfig()
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := daemon.OpenDatabase(&cfg)
		if err != nil {
			return err
		}

		if err = daemon.Migrate(db); err != nil {
			return err
		}

		if err = daemon.Seed(&cfg, db); err != nil {
			return err
		}

		log.Info().Str("engine", cfg.DB.GormEngine).Msg("database migrated")

		return nil
	},
}
