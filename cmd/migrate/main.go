package main

import (
	"context"
	"os"
	"time"

	mongoMigration "trainerbook/internal/migrations/mongo"
	pgMigration "trainerbook/internal/migrations/postgres"
	"trainerbook/pkg/config"
)

const JobName = "migrate"

func main() {
	cfg := config.Load(JobName)
	cfg.Log.Info("Starting migration job")

	cfg.SetMongo()
	if cfg.LedgerBackend == config.LedgerPostgres {
		cfg.SetPostgres()
	}

	err := run(cfg)
	cfg.GracefulShutdown()
	if err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	cfg.Log.Info("Migration completed successfully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		return err
	}

	if cfg.Client.Postgres != nil {
		return pgMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log)
	}
	return nil
}
