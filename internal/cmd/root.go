package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/foresight/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "foresight",
	Short: "Predictive self-tuning resource controller",
	Long: `Foresight watches the load of its worker pools and host, forecasts
utilization over short horizons, and adjusts pool sizes, memory
reservations, request rates and load distribution before saturation.

Declarative policies run alongside the predictive planner and can be
loaded from a YAML file that is reloaded on change.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/foresight/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/foresight")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FORESIGHT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FORESIGHT_ADAPTIVE_MAX_EVENTS for adaptive.max_events
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
