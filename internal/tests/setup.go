// Package tests holds Postgres-backed integration tests. They skip when DATABASE_URL is unset.
package tests

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contactdesk/server/internal/db"
)

// RunMigrations applies the embedded migrations
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// TruncateTables empties every application table for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, "TRUNCATE TABLE device_codes, devices, user_presence, user_profile RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
