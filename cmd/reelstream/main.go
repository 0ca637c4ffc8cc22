package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"reelstream/pkg/logger"
)

var (
	flagConfig  string
	flagAPI     string
	flagCatalog string
	flagToken   string
	flagDebug   bool
)

var (
	cfg *Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "reelstream",
	Short:             "Browse the movie catalog and watch from the terminal",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/reelstream/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", "", "reelstream server base URL")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Movie API base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Admin access token")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(listCmd, watchCmd, latestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			path = ""
		}
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if flagAPI != "" {
		loaded.APIBase = flagAPI
	}
	if flagCatalog != "" {
		loaded.CatalogBase = flagCatalog
	}
	if flagToken != "" {
		loaded.Token = flagToken
	}
	if flagDebug {
		loaded.LogLevel = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	log = logger.NewWriter(os.Stderr, cfg.LogLevel, "console")
	return nil
}
