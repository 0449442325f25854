package storage

import (
	"context"
	"fmt"

	"github.com/calwatch/warchest/internal/model"
)

// RecordRejection stores the audit record for a rejected or flagged row.
func (s *SQLiteStorage) RecordRejection(ctx context.Context, rejection *model.Rejection) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rejection == nil {
		return fmt.Errorf("%w: rejection", ErrNilParameter)
	}
	if err := validateString(rejection.RowHash, "rowHash"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rejections (run_id, row_hash, reason, detail)
		VALUES (?, ?, ?, ?)
	`, rejection.RunID, rejection.RowHash, string(rejection.Reason), rejection.Detail)
	if err != nil {
		return fmt.Errorf("failed to record rejection: %w", err)
	}
	return nil
}

// GetRejectionsByRun returns all rejections recorded under an import run.
func (s *SQLiteStorage) GetRejectionsByRun(ctx context.Context, runID string) ([]model.Rejection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, row_hash, reason, detail FROM rejections
		WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rejections []model.Rejection
	for rows.Next() {
		var r model.Rejection
		var reason string
		if err := rows.Scan(&r.RunID, &r.RowHash, &reason, &r.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		r.Reason = model.RejectReason(reason)
		rejections = append(rejections, r)
	}
	return rejections, rows.Err()
}

// SeenRowHashes returns the hashes of rows the importer has already
// processed: accepted rows (via their source hash on the ledger) and hard
// rejections. Rows flagged unresolved_optional_fk were accepted and are
// covered by their ledger hash.
func (s *SQLiteStorage) SeenRowHashes(ctx context.Context) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_hash FROM transactions WHERE source_hash != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan source hash: %w", err)
		}
		seen[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rejected, err := s.db.QueryContext(ctx,
		`SELECT row_hash FROM rejections WHERE reason != ?`,
		string(model.ReasonUnresolvedOptionalFK))
	if err != nil {
		return nil, fmt.Errorf("failed to query rejected hashes: %w", err)
	}
	defer func() { _ = rejected.Close() }()
	for rejected.Next() {
		var h string
		if err := rejected.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan rejected hash: %w", err)
		}
		seen[h] = struct{}{}
	}
	return seen, rejected.Err()
}
