package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_reports_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS reports (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				similarity REAL NOT NULL DEFAULT 0,
				sources TEXT NOT NULL DEFAULT '[]',
				word_count INTEGER NOT NULL DEFAULT 0,
				time_spent TEXT NOT NULL DEFAULT '00:00',
				flagged INTEGER NOT NULL DEFAULT 0,
				matches TEXT NOT NULL DEFAULT '[]'
			);
			CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
			CREATE INDEX IF NOT EXISTS idx_reports_flagged ON reports(flagged);
		`,
	},
	{
		Version: 2,
		Name:    "create_sources_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS sources (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				body TEXT NOT NULL,
				source_url TEXT NOT NULL DEFAULT '',
				source_type TEXT NOT NULL DEFAULT 'other',
				embedding TEXT,
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sources_source_type ON sources(source_type);
		`,
	},
	{
		Version: 3,
		Name:    "create_sources_fts_index",
		SQL: `
			CREATE VIRTUAL TABLE IF NOT EXISTS sources_fts USING fts5(
				source_id UNINDEXED,
				title,
				body
			);
		`,
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Info("checked schema version", "current", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("applying migration", "version", migration.Version, "name", migration.Name)
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
