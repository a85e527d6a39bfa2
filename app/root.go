// Package app implements the main application commands.
package app

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CARDFORGE"

var rootCmd = &cobra.Command{
	Use:   "cardforge",
	Short: "CardForge serves digital business cards",
	Long: `CardForge is the backend of a digital business card platform.
It manages cards, themes, subscriptions, payments and phone verification.`,
	Args: cobra.OnlyValidArgs,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// a missing .env is fine, the environment may already be set
		_ = godotenv.Load()
	},
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration directory containing main.toml")
	rootCmd.PersistentFlags().Bool("dev", false, "Enable dev mode")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("dev", rootCmd.PersistentFlags().Lookup("dev"))

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
