package database

import (
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change. Migrations are embedded rather
// than shipped as loose .sql files so a single binary deployment stays
// self-contained.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_reported_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS reported_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				event_type TEXT NOT NULL,
				route_line TEXT NOT NULL,
				track_side TEXT NOT NULL,
				mileage_text TEXT NOT NULL,
				mileage_meters REAL,
				photo_filename TEXT,
				longitude REAL,
				latitude REAL,
				location_title TEXT,
				location_address TEXT,
				source_type TEXT,
				source_id TEXT,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_reported_events_created_at
				ON reported_events (created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create_rainfall_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS stations (
				station_id TEXT PRIMARY KEY,
				station_name TEXT NOT NULL,
				city TEXT,
				town TEXT,
				attribute TEXT,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				elevation REAL
			);
			CREATE TABLE IF NOT EXISTS observations (
				station_id TEXT NOT NULL REFERENCES stations(station_id),
				obs_time TEXT NOT NULL,
				min_10 REAL,
				hour_1 REAL,
				hour_3 REAL,
				hour_6 REAL,
				hour_12 REAL,
				hour_24 REAL,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (station_id, obs_time)
			);
			CREATE TABLE IF NOT EXISTS rainfall_meta (
				key TEXT PRIMARY KEY,
				value TEXT
			);
		`,
	},
}

// Migrate applies all pending migrations in version order.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.Query("SELECT version FROM migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, migration Migration) error {
	return Transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
}
