package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"journal/api/internal/store"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.ApplyMigrations(db); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		return printVersion()
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}
		if err := store.RollbackMigrations(db, migrateSteps); err != nil {
			return fmt.Errorf("rolling back migrations: %w", err)
		}
		return printVersion()
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion()
	},
}

func printVersion() error {
	version, dirty, err := store.MigrationVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		fmt.Printf("Schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Printf("Schema version: %d\n", version)
	return nil
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}
