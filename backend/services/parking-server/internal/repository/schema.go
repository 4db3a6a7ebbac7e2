package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const (
	sessionsTable = "parking_sessions"
	pricesTable   = "zone_prices"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		device_id       TEXT PRIMARY KEY,
		elapsed_seconds BIGINT NOT NULL DEFAULT 0,
		zone            TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS zone_prices (
		zone                TEXT PRIMARY KEY,
		fee_rate_per_second DOUBLE PRECISION NOT NULL
	)`,
}

var requiredColumns = map[string][]string{
	sessionsTable: {"device_id", "elapsed_seconds", "zone"},
	pricesTable:   {"zone", "fee_rate_per_second"},
}

// EnsureSchema creates both tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository: ensure schema: %w", err)
		}
	}
	return nil
}

// ValidateSchema checks that every table exposes the columns the server reads.
// Each check selects the columns with LIMIT 0 so it works on SQLite and Postgres alike.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{sessionsTable, pricesTable} {
		cols := requiredColumns[table]
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(cols, ", "), table)
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("repository: table %s lacks required columns %v: %w", table, cols, err)
		}
		rows.Close()
	}
	return nil
}
