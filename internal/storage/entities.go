package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
)

// CreateEntity inserts a new entity and returns its id. Source exports
// share an id space across files, so a nonzero id is kept as-is; a zero id
// gets the next rowid.
func (s *SQLiteStorage) CreateEntity(ctx context.Context, entity *model.Entity) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateEntity(entity); err != nil {
		return 0, err
	}

	var res sql.Result
	var err error
	if entity.ID != 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO entities (id, first_name, last_name, city, state, occupation, employer, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entity.ID, entity.FirstName, entity.LastName, entity.City, entity.State,
			entity.Occupation, entity.Employer, string(entity.Kind))
	} else {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO entities (first_name, last_name, city, state, occupation, employer, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, entity.FirstName, entity.LastName, entity.City, entity.State,
			entity.Occupation, entity.Employer, string(entity.Kind))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert entity: %w", err)
	}

	if entity.ID != 0 {
		return entity.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get entity id: %w", err)
	}
	entity.ID = id
	return id, nil
}

// GetEntity retrieves an entity by id.
func (s *SQLiteStorage) GetEntity(ctx context.Context, id int64) (*model.Entity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var e model.Entity
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, city, state, occupation, employer, kind
		FROM entities WHERE id = ?
	`, id).Scan(&e.ID, &e.FirstName, &e.LastName, &e.City, &e.State,
		&e.Occupation, &e.Employer, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	e.Kind = model.EntityKind(kind)
	return &e, nil
}

// ListEntityIDs returns every known entity id with its kind. The normalizer
// resolves foreign references against this snapshot at import time.
func (s *SQLiteStorage) ListEntityIDs(ctx context.Context) (map[int64]model.EntityKind, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, kind FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]model.EntityKind)
	for rows.Next() {
		var id int64
		var kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		ids[id] = model.EntityKind(kind)
	}
	return ids, rows.Err()
}

// MergeEntities reassigns every transaction and committee owned by the
// duplicate entities onto the canonical one. The whole merge runs inside a
// single database transaction: a failure at any step rolls everything back.
// Overlapping merges are serialized by an in-process lock over the id set.
func (s *SQLiteStorage) MergeEntities(ctx context.Context, canonical int64, duplicates []int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(duplicates) == 0 {
		return 0, fmt.Errorf("%w: duplicates", ErrEmptySlice)
	}
	for _, d := range duplicates {
		if d == canonical {
			return 0, fmt.Errorf("entity %d cannot be merged into itself", canonical)
		}
	}

	release, err := s.lockEntities(append([]int64{canonical}, duplicates...))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrMergeInProgress, err)
	}
	defer release()

	if _, err := s.GetEntity(ctx, canonical); err != nil {
		return 0, err
	}

	reassigned := 0
	err = s.execTx(ctx, func(tx *sql.Tx) error {
		for step, dup := range duplicates {
			res, err := tx.ExecContext(ctx,
				`UPDATE transactions SET entity_id = ? WHERE entity_id = ?`, canonical, dup)
			if err != nil {
				return fmt.Errorf("%w: reassigning transactions of entity %d: %v",
					common.ErrInconsistentMerge, dup, err)
			}
			n, _ := res.RowsAffected()
			reassigned += int(n)

			if _, err := tx.ExecContext(ctx,
				`UPDATE committees SET entity_id = ? WHERE entity_id = ?`, canonical, dup); err != nil {
				return fmt.Errorf("%w: reassigning committees of entity %d: %v",
					common.ErrInconsistentMerge, dup, err)
			}

			if s.mergeHook != nil {
				if err := s.mergeHook(step); err != nil {
					return fmt.Errorf("%w: %v", common.ErrInconsistentMerge, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("Merged entities",
		"canonical", canonical,
		"duplicates", len(duplicates),
		"transactions_reassigned", reassigned)
	return reassigned, nil
}
