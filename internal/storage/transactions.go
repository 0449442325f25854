package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/service"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, natural_key, committee_id, entity_id, amount, date,
	type, target_committee_id, benefit, deleted, supersedes_id, source_hash, import_run_id`

func scanTransaction(scan func(...any) error) (*model.Transaction, error) {
	var t model.Transaction
	var amount, date, typ string
	var target, supersedes sql.NullInt64
	var benefit sql.NullBool
	if err := scan(&t.ID, &t.NaturalKeyHash, &t.CommitteeID, &t.EntityID, &amount, &date,
		&typ, &target, &benefit, &t.Deleted, &supersedes, &t.SourceHash, &t.ImportRunID); err != nil {
		return nil, err
	}

	var err error
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", common.ErrDatabaseCorrupted, amount)
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if d, perr := time.Parse(layout, date); perr == nil {
			t.Date = d
			break
		}
	}
	if t.Date.IsZero() {
		return nil, fmt.Errorf("%w: bad date %q", common.ErrDatabaseCorrupted, date)
	}
	t.Type = model.TxnType(typ)
	if target.Valid {
		t.TargetCommitteeID = &target.Int64
	}
	if supersedes.Valid {
		t.SupersedesID = &supersedes.Int64
	}
	t.Benefit = model.TriBoolFromNull(benefit)
	return &t, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) (int64, error) {
	var target, supersedes any
	if txn.TargetCommitteeID != nil {
		target = *txn.TargetCommitteeID
	}
	if txn.SupersedesID != nil {
		supersedes = *txn.SupersedesID
	}

	var res sql.Result
	var err error
	if txn.ID != 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (id, natural_key, committee_id, entity_id, amount,
				date, type, target_committee_id, benefit, supersedes_id, source_hash, import_run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, txn.ID, txn.NaturalKeyHash, txn.CommitteeID, txn.EntityID,
			txn.Amount.StringFixed(2), txn.Date.Format("2006-01-02"), string(txn.Type),
			target, txn.Benefit.NullBool(), supersedes, txn.SourceHash, txn.ImportRunID)
	} else {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (natural_key, committee_id, entity_id, amount,
				date, type, target_committee_id, benefit, supersedes_id, source_hash, import_run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, txn.NaturalKeyHash, txn.CommitteeID, txn.EntityID,
			txn.Amount.StringFixed(2), txn.Date.Format("2006-01-02"), string(txn.Type),
			target, txn.Benefit.NullBool(), supersedes, txn.SourceHash, txn.ImportRunID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	if txn.ID != 0 {
		return txn.ID, nil
	}
	return res.LastInsertId()
}

// SaveTransactions inserts transactions, skipping any whose natural key is
// already present in the ledger. The existence check and insert run in one
// database transaction, so a batch is all-or-nothing and two writers can
// never race the same natural key into the ledger twice.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, 0, err
	}

	created, skipped := 0, 0
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		for i := range transactions {
			txn := &transactions[i]
			if txn.NaturalKeyHash == "" {
				txn.NaturalKeyHash = txn.NaturalKey()
			}

			var existing int64
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM transactions WHERE natural_key = ? AND deleted = 0 LIMIT 1`,
				txn.NaturalKeyHash).Scan(&existing)
			switch {
			case err == nil:
				skipped++
				continue
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to check natural key: %w", err)
			}

			id, err := insertTransactionTx(ctx, tx, txn)
			if err != nil {
				return err
			}
			txn.ID = id
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, skipped, nil
}

// UpsertTransactions is the explicit "refresh" import mode: a natural-key
// collision updates the existing ledger row in place instead of skipping.
func (s *SQLiteStorage) UpsertTransactions(ctx context.Context, transactions []model.Transaction) (int, int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, 0, err
	}

	created, updated := 0, 0
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		for i := range transactions {
			txn := &transactions[i]
			if txn.NaturalKeyHash == "" {
				txn.NaturalKeyHash = txn.NaturalKey()
			}

			var existing int64
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM transactions WHERE natural_key = ? AND deleted = 0 LIMIT 1`,
				txn.NaturalKeyHash).Scan(&existing)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check natural key: %w", err)
			}

			if err == nil {
				var target any
				if txn.TargetCommitteeID != nil {
					target = *txn.TargetCommitteeID
				}
				if _, err := tx.ExecContext(ctx, `
					UPDATE transactions
					SET target_committee_id = ?, benefit = ?, source_hash = ?, import_run_id = ?
					WHERE id = ?
				`, target, txn.Benefit.NullBool(), txn.SourceHash, txn.ImportRunID, existing); err != nil {
					return fmt.Errorf("failed to refresh transaction %d: %w", existing, err)
				}
				txn.ID = existing
				updated++
				continue
			}

			id, err := insertTransactionTx(ctx, tx, txn)
			if err != nil {
				return err
			}
			txn.ID = id
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// GetTransaction retrieves a single transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// GetTransactions retrieves transactions matching the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conds []string
	var args []any

	if !filter.IncludeDeleted {
		conds = append(conds, "deleted = 0")
	}
	if filter.CommitteeID != nil {
		conds = append(conds, "committee_id = ?")
		args = append(args, *filter.CommitteeID)
	}
	if filter.TargetID != nil {
		conds = append(conds, "target_committee_id = ?")
		args = append(args, *filter.TargetID)
	}
	if filter.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// GetIETransactionsByTargets returns non-deleted independent-expenditure
// transactions whose target is any of the given committees. Rows without a
// known benefit flag are not IE records and are excluded.
func (s *SQLiteStorage) GetIETransactionsByTargets(ctx context.Context, targetIDs []int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(targetIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(targetIDs))
	for i, id := range targetIDs {
		args[i] = id
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE target_committee_id IN (` + placeholders(len(targetIDs)) + `)
		AND benefit IS NOT NULL AND deleted = 0 ORDER BY id`
	return s.queryTransactions(ctx, query, args...)
}

// GetIncomeByCommittees returns non-deleted income-direction transactions
// received by any of the given committees.
func (s *SQLiteStorage) GetIncomeByCommittees(ctx context.Context, committeeIDs []int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(committeeIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(committeeIDs)+2)
	for _, id := range committeeIDs {
		args = append(args, id)
	}
	args = append(args, string(model.TxnContribution), string(model.TxnLoan))
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE committee_id IN (` + placeholders(len(committeeIDs)) + `)
		AND type IN (?, ?) AND deleted = 0 ORDER BY id`
	return s.queryTransactions(ctx, query, args...)
}

// DuplicateGroups returns up to limit groups of non-deleted transactions
// sharing a natural key, each group ordered by id ascending. The dedupe
// pass re-queries this after every committed batch instead of trusting an
// in-memory cursor, so it survives crashes mid-run.
func (s *SQLiteStorage) DuplicateGroups(ctx context.Context, limit int) ([][]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT natural_key FROM transactions
		WHERE deleted = 0
		GROUP BY natural_key HAVING COUNT(*) > 1
		ORDER BY natural_key LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan natural key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([][]model.Transaction, 0, len(keys))
	for _, key := range keys {
		members, err := s.queryTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			WHERE natural_key = ? AND deleted = 0 ORDER BY id`, key)
		if err != nil {
			return nil, err
		}
		if len(members) > 1 {
			groups = append(groups, members)
		}
	}
	return groups, nil
}

// RemoveDuplicates deletes the losing members of one duplicate group after
// rewriting any supersedes links pointing at them onto the survivor. Link
// rewriting happens strictly before deletion, inside the same database
// transaction, so no intermediate state has a dangling supersedes chain.
func (s *SQLiteStorage) RemoveDuplicates(ctx context.Context, keepID int64, removeIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(removeIDs) == 0 {
		return fmt.Errorf("%w: removeIDs", ErrEmptySlice)
	}

	return s.execTx(ctx, func(tx *sql.Tx) error {
		for _, id := range removeIDs {
			if id == keepID {
				return fmt.Errorf("cannot remove surviving transaction %d", keepID)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET supersedes_id = ? WHERE supersedes_id = ?`,
				keepID, id); err != nil {
				return fmt.Errorf("failed to rewrite supersedes links for %d: %w", id, err)
			}
		}
		args := make([]any, len(removeIDs))
		for i, id := range removeIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id IN (`+placeholders(len(removeIDs))+`)`,
			args...); err != nil {
			return fmt.Errorf("failed to delete duplicates: %w", err)
		}
		return nil
	})
}

// SoftDeleteTransactions marks transactions deleted without removing them,
// keeping supersedes chains intact.
func (s *SQLiteStorage) SoftDeleteTransactions(ctx context.Context, ids []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET deleted = 1 WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to soft-delete transactions: %w", err)
	}
	return nil
}

// DanglingTargets finds transactions whose target committee does not exist,
// grouped by the missing committee id.
func (s *SQLiteStorage) DanglingTargets(ctx context.Context) (map[int64][]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.target_committee_id, t.id
		FROM transactions t
		LEFT JOIN committees c ON t.target_committee_id = c.id
		WHERE t.target_committee_id IS NOT NULL AND c.id IS NULL
		ORDER BY t.target_committee_id, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dangling targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dangling := make(map[int64][]int64)
	for rows.Next() {
		var target, txnID int64
		if err := rows.Scan(&target, &txnID); err != nil {
			return nil, fmt.Errorf("failed to scan dangling target: %w", err)
		}
		dangling[target] = append(dangling[target], txnID)
	}
	return dangling, rows.Err()
}

// SetTransactionTargets repoints the target committee on a set of transactions.
func (s *SQLiteStorage) SetTransactionTargets(ctx context.Context, ids []int64, targetID int64) error {
	return s.updateTargets(ctx, ids, targetID)
}

// NullTransactionTargets clears the target committee on a set of transactions.
func (s *SQLiteStorage) NullTransactionTargets(ctx context.Context, ids []int64) error {
	return s.updateTargets(ctx, ids, nil)
}

func (s *SQLiteStorage) updateTargets(ctx context.Context, ids []int64, target any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, target)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET target_committee_id = ? WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction targets: %w", err)
	}
	return nil
}
