package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS entities (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					first_name TEXT NOT NULL DEFAULT '',
					last_name TEXT NOT NULL DEFAULT '',
					city TEXT NOT NULL DEFAULT '',
					state TEXT NOT NULL DEFAULT '',
					occupation TEXT NOT NULL DEFAULT '',
					employer TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL DEFAULT 'other',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_entities_last_name ON entities(last_name)`,

				`CREATE TABLE IF NOT EXISTS committees (
					id INTEGER PRIMARY KEY,
					entity_id INTEGER NOT NULL,
					candidate_first TEXT NOT NULL DEFAULT '',
					candidate_last TEXT NOT NULL DEFAULT '',
					office TEXT NOT NULL DEFAULT '',
					party TEXT NOT NULL DEFAULT '',
					cycle INTEGER NOT NULL DEFAULT 0,
					incumbent BOOLEAN,
					sponsor BOOLEAN NOT NULL DEFAULT 0,
					formed_date DATE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (entity_id) REFERENCES entities(id)
				)`,
				`CREATE INDEX idx_committees_entity ON committees(entity_id)`,
				`CREATE INDEX idx_committees_cycle ON committees(cycle)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY,
					natural_key TEXT NOT NULL,
					committee_id INTEGER NOT NULL,
					entity_id INTEGER NOT NULL,
					amount TEXT NOT NULL,
					date DATE NOT NULL,
					type TEXT NOT NULL,
					target_committee_id INTEGER,
					benefit BOOLEAN,
					deleted BOOLEAN NOT NULL DEFAULT 0,
					supersedes_id INTEGER,
					source_hash TEXT NOT NULL DEFAULT '',
					import_run_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (committee_id) REFERENCES committees(id),
					FOREIGN KEY (entity_id) REFERENCES entities(id)
				)`,
				// Not UNIQUE: ledgers populated before the import-time guard
				// existed carry duplicates the dedupe pass cleans up.
				`CREATE INDEX idx_transactions_natural_key ON transactions(natural_key)`,
				`CREATE INDEX idx_transactions_committee ON transactions(committee_id)`,
				`CREATE INDEX idx_transactions_target ON transactions(target_committee_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
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
		Description: "Add rejection audit table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rejections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					row_hash TEXT NOT NULL,
					reason TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rejections_run ON rejections(run_id)`,
				`CREATE INDEX idx_rejections_row_hash ON rejections(row_hash)`,
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
		Description: "Add placeholder id arena and committee audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Single-row allocator for the reserved negative id range.
				`CREATE TABLE IF NOT EXISTS placeholder_seq (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					next_id INTEGER NOT NULL
				)`,
				`INSERT OR IGNORE INTO placeholder_seq (id, next_id) VALUES (1, -1)`,
				`CREATE UNIQUE INDEX idx_committees_placeholder_entity
					ON committees(entity_id) WHERE id < 0`,

				`CREATE TABLE IF NOT EXISTS committee_audit (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					committee_id INTEGER NOT NULL,
					field TEXT NOT NULL,
					old_value TEXT NOT NULL DEFAULT '',
					new_value TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (committee_id) REFERENCES committees(id)
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
		Version:     4,
		Description: "Add import cursors for restartable batch jobs",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS import_cursors (
					run_id TEXT NOT NULL,
					source TEXT NOT NULL,
					batch_offset INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (run_id, source)
				)
			`)
			return err
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= ExpectedSchemaVersion {
		slog.Debug("Database schema is up to date", "version", currentVersion)
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
