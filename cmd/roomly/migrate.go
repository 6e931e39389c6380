package main

import (
	"context"
	"time"

	migrations "roomly/internal/migrations/mongo"
	"roomly/pkg/config"

	"github.com/spf13/cobra"
)

const migrationJobName = "mongo-migration"

func newMigrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, schema validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := config.Load(migrationJobName)
			cfg.Log.Info("Starting Mongo migration job")
			return withMongo(ctx, cfg, func(ctx context.Context) error {
				return migrations.RunMigration(ctx, cfg.Client.Mongo.Client, cfg.MongoDatabaseName, cfg.Log)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall migration deadline")
	return cmd
}
