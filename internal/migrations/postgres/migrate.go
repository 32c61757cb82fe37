package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"trainerbook/pkg/logger"
)

//go:embed schema.sql
var schema string

// RunMigration applies the bookings schema. Every statement is idempotent.
func RunMigration(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	log.Info("Running PostgreSQL migrations")
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply bookings schema: %w", err)
	}
	log.Info("PostgreSQL schema applied")
	return nil
}
