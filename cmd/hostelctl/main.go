package main

import (
	"context"
	"fmt"
	"os"
	"time"

	mongomigration "hostel/internal/migrations/mongo"
	roomrepo "hostel/internal/room/repository"
	"hostel/internal/seed"
	"hostel/pkg/config"

	"github.com/spf13/cobra"
)

const ServiceName = "hostelctl"

const jobTimeout = 120 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "hostelctl",
		Short: "Operational tooling for the hostel booking engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, JSON schema validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(ServiceName)
			cfg.SetMongo()
			defer cfg.GracefulShutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), jobTimeout)
			defer cancel()

			if err := mongomigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println("Migration completed successfully.")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed hostels and rooms into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(ServiceName)
			cfg.SetMongo()
			defer cfg.GracefulShutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), jobTimeout)
			defer cancel()

			hostelRepo := roomrepo.NewMongoHostelRepository(cfg)
			roomRepo := roomrepo.NewMongoRoomRepository(cfg)

			if err := seed.Run(ctx, hostelRepo, roomRepo, cfg); err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Println("Seed completed successfully.")
			return nil
		},
	}
}
