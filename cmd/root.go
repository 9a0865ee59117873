// Package cmd implements the command-line interface of the scraper
// dashboard.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/4liaghaie/scraper-dashboard/cmd/httpd"
	"github.com/4liaghaie/scraper-dashboard/cmd/kinds"
	"github.com/4liaghaie/scraper-dashboard/cmd/watch"
	"github.com/4liaghaie/scraper-dashboard/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "scraper-dashboard",
		Short: "Deal site scraper with a job dashboard",
		Long:  `Runs scraper jobs against deal sites and serves their live progress over an HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so its variables are visible to viper.
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml)",
	)

	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(watch.Command())
	rootCmd.AddCommand(kinds.Command())
}

// initConfig reads the config file and environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix("SCRAPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			// No config file is fine; defaults and env cover it.
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
