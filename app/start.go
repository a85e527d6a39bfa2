package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/daemon"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(startCmd)
}

var (
	cfg config.Config
	err error

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the CardForge web service",
		PreRun: func(_ *cobra.Command, _ []string) {
			loadConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			return d.Start()
		},
	}
)

// loadConfig reads main.toml from the directory given by --config or CARDFORGE_CONFIG.
func loadConfig() {
	if cfg, err = config.ReadConfig(viper.GetString("config")); err != nil {
		panic(err)
	}

	if viper.GetBool("dev") {
		cfg.DevMode = true
	}
}
