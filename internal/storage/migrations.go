package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			// AUTOINCREMENT keeps rowids starting at 1, so id 0 stays free
			// as the "no unit" / "no group" sentinel.
			queries := []string{
				`CREATE TABLE IF NOT EXISTS units (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					symbol TEXT UNIQUE NOT NULL,
					kind TEXT NOT NULL CHECK (kind IN ('source', 'graphic')),
					idx INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_units_kind ON units(kind)`,

				`CREATE TABLE IF NOT EXISTS meters (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					unit_id INTEGER NOT NULL DEFAULT 0,
					group_id INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_meters_group ON meters(group_id)`,
				`CREATE INDEX idx_meters_unit ON meters(unit_id)`,

				`CREATE TABLE IF NOT EXISTS groups (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					parent_id INTEGER NOT NULL DEFAULT 0,
					default_unit_id INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_groups_parent ON groups(parent_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add relation snapshot cache",
		Up: func(tx *sql.Tx) error {
			// Exactly one cached snapshot; a new load replaces it whole.
			queries := []string{
				`CREATE TABLE IF NOT EXISTS relation_snapshots (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					version TEXT NOT NULL,
					generated_at DATETIME NOT NULL,
					loaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS relation_units (
					axis TEXT NOT NULL CHECK (axis IN ('source', 'target')),
					unit_id INTEGER NOT NULL,
					idx INTEGER NOT NULL,
					PRIMARY KEY (axis, unit_id),
					UNIQUE (axis, idx)
				)`,
				`CREATE TABLE IF NOT EXISTS relation_cells (
					row_idx INTEGER NOT NULL,
					col_idx INTEGER NOT NULL,
					PRIMARY KEY (row_idx, col_idx)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Optimize database indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Default-unit lookups during ancestor reclassification
				`CREATE INDEX IF NOT EXISTS idx_groups_default_unit ON groups(default_unit_id)`,
				// Redundant: the UNIQUE constraint on name already indexes it
				`DROP INDEX IF EXISTS idx_units_name`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations to bring the schema up to date.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
