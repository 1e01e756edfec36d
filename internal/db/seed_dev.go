package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Location assigned to the starter reader.
	Location string
}

// SeedDev inserts a starter reader and two demo users so a fresh dev
// database can accept scans immediately. Existing rows are left alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()
	location := opt.Location
	if location == "" {
		location = "Main Gate"
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO readers(reader_id, name, location, status, created_at_ms, updated_at_ms)
VALUES ('reader-001', 'Main Gate Reader', ?, 'active', ?, ?);`, location, now, now); err != nil {
		return fmt.Errorf("seed readers: %w", err)
	}

	users := []struct {
		card, name, email, status string
		level                     int
		balance                   int64
	}{
		{"A1B2C3D4", "Dev Student", "student@example.test", "active", 1, 50000},
		{"0BADCAFE", "Dev Inactive", "inactive@example.test", "inactive", 1, 0},
	}
	for _, u := range users {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO users(
  card_id, name, email, status, access_level, balance_cents, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			u.card, u.name, u.email, u.status, u.level, u.balance, now, now,
		); err != nil {
			return fmt.Errorf("seed user %s: %w", u.card, err)
		}
	}

	return nil
}
