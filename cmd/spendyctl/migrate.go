package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendy/internal/storage"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}
		return printStatus(cmd, cfg.SQLiteDBPath)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if migrateSteps < 1 {
			return fmt.Errorf("--steps must be at least 1, got %d", migrateSteps)
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := storage.RollbackMigrations(cfg.SQLiteDBPath, migrateSteps); err != nil {
			return err
		}
		return printStatus(cmd, cfg.SQLiteDBPath)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return printStatus(cmd, cfg.SQLiteDBPath)
	},
}

func printStatus(cmd *cobra.Command, dbPath string) error {
	st, err := storage.GetMigrationStatus(dbPath)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", st.Version, state)
	return nil
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
