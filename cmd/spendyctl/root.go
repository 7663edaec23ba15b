package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"spendy/internal/cli"
	"spendy/internal/config"
	applog "spendy/internal/log"
)

var (
	flagUser   string
	flagDBPath string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:           "spendyctl",
	Short:         "Operator tool for the spendy savings service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of a table")
}

// loadConfig reads the same configuration as the server, applying --db.
func loadConfig() (*config.Config, *applog.Logger, error) {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flagDBPath != "" {
		cfg.SQLiteDBPath = flagDBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	// Keep stdout for command output.
	logger := applog.New(applog.Config{Level: slog.LevelWarn, Format: cfg.LogFormat, Component: applog.ComponentCLI, Output: os.Stderr})
	applog.SetDefault(logger)
	return cfg, logger, nil
}

func requireUser(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagUser, "user", "u", "", "User id to report on")
	_ = cmd.MarkFlagRequired("user")
}
