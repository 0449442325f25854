package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveCursor records the last committed batch offset for one source within
// an import run. A crashed run resumes from here instead of reprocessing
// the whole file.
func (s *SQLiteStorage) SaveCursor(ctx context.Context, runID, source string, offset int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}
	if err := validateString(source, "source"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_cursors (run_id, source, batch_offset, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (run_id, source) DO UPDATE SET
			batch_offset = excluded.batch_offset,
			updated_at = CURRENT_TIMESTAMP
	`, runID, source, offset)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// GetCursor returns the last committed offset for a source, zero if the
// source has not been seen in this run.
func (s *SQLiteStorage) GetCursor(ctx context.Context, runID, source string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var offset int
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_offset FROM import_cursors WHERE run_id = ? AND source = ?`,
		runID, source).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query cursor: %w", err)
	}
	return offset, nil
}
