package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"journal/api/internal/app"
	"journal/api/internal/comments"
	"journal/api/internal/store"
)

var seedReset bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, journals and comments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.ApplyMigrations(db); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		dataStore := store.NewPostgresStore(db)
		commentService := comments.NewService(dataStore, dataStore, nil, nil, logger)
		service := app.New(cfg, dataStore, dataStore, commentService, nil, logger)

		report, err := service.Seed(context.Background(), seedReset)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		if report.Skipped {
			fmt.Println("Seed data already present; use --reset to reload")
			return nil
		}
		fmt.Printf("Seeded %d users, %d journals, %d comments\n", report.Users, report.Journals, report.Comments)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete all existing data before seeding")
}
