package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
)

// CreateCommittee inserts a committee. A zero id lets SQLite assign the
// next positive rowid; placeholder committees pass an explicit negative id
// obtained from AllocatePlaceholderID.
func (s *SQLiteStorage) CreateCommittee(ctx context.Context, committee *model.Committee) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCommittee(committee); err != nil {
		return 0, err
	}

	var formed any
	if committee.FormedDate != nil {
		formed = committee.FormedDate.Format("2006-01-02")
	}

	var res sql.Result
	var err error
	if committee.ID != 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO committees (id, entity_id, candidate_first, candidate_last,
				office, party, cycle, incumbent, sponsor, formed_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, committee.ID, committee.EntityID, committee.CandidateFirst, committee.CandidateLast,
			committee.Office, committee.Party, committee.Cycle,
			committee.Incumbent.NullBool(), committee.Sponsor, formed)
	} else {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO committees (entity_id, candidate_first, candidate_last,
				office, party, cycle, incumbent, sponsor, formed_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, committee.EntityID, committee.CandidateFirst, committee.CandidateLast,
			committee.Office, committee.Party, committee.Cycle,
			committee.Incumbent.NullBool(), committee.Sponsor, formed)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert committee: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get committee id: %w", err)
	}
	if committee.ID != 0 {
		id = committee.ID
	}
	committee.ID = id
	return id, nil
}

func scanCommittee(scan func(...any) error) (*model.Committee, error) {
	var c model.Committee
	var incumbent sql.NullBool
	var formed sql.NullString
	if err := scan(&c.ID, &c.EntityID, &c.CandidateFirst, &c.CandidateLast,
		&c.Office, &c.Party, &c.Cycle, &incumbent, &c.Sponsor, &formed); err != nil {
		return nil, err
	}
	c.Incumbent = model.TriBoolFromNull(incumbent)
	if formed.Valid && formed.String != "" {
		// formed_date may come back as a bare date or a full timestamp
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, formed.String); err == nil {
				c.FormedDate = &t
				break
			}
		}
	}
	return &c, nil
}

const committeeColumns = `id, entity_id, candidate_first, candidate_last,
	office, party, cycle, incumbent, sponsor, formed_date`

// GetCommittee retrieves a committee by id.
func (s *SQLiteStorage) GetCommittee(ctx context.Context, id int64) (*model.Committee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+committeeColumns+` FROM committees WHERE id = ?`, id)
	c, err := scanCommittee(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("committee %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query committee: %w", err)
	}
	return c, nil
}

// ListCommittees returns all committees, placeholders included.
func (s *SQLiteStorage) ListCommittees(ctx context.Context) ([]model.Committee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+committeeColumns+` FROM committees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query committees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var committees []model.Committee
	for rows.Next() {
		c, err := scanCommittee(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan committee: %w", err)
		}
		committees = append(committees, *c)
	}
	return committees, rows.Err()
}

// GetPlaceholderByEntity returns the placeholder committee already bound to
// an entity, or common.ErrNotFound. Reference repair checks here before
// synthesizing so re-runs stay idempotent.
func (s *SQLiteStorage) GetPlaceholderByEntity(ctx context.Context, entityID int64) (*model.Committee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+committeeColumns+` FROM committees WHERE entity_id = ? AND id < 0`, entityID)
	c, err := scanCommittee(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("placeholder for entity %d: %w", entityID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query placeholder: %w", err)
	}
	return c, nil
}

// AllocatePlaceholderID reserves the next id from the negative arena. The
// allocator is a persisted counter, not a MIN(id) probe, so concurrent
// repair runs can never hand out the same id twice.
func (s *SQLiteStorage) AllocatePlaceholderID(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var id int64
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT next_id FROM placeholder_seq WHERE id = 1`).Scan(&id); err != nil {
			return fmt.Errorf("failed to read placeholder counter: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE placeholder_seq SET next_id = next_id - 1 WHERE id = 1`); err != nil {
			return fmt.Errorf("failed to advance placeholder counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCommitteeClassification applies one identity-resolution correction
// (office or cycle) and records the change in the audit log.
func (s *SQLiteStorage) UpdateCommitteeClassification(ctx context.Context, id int64, field, value string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(value, "value"); err != nil {
		return err
	}

	var column string
	switch field {
	case "office":
		column = "office"
	case "cycle":
		column = "cycle"
	default:
		return fmt.Errorf("unknown classification field %q", field)
	}

	return s.execTx(ctx, func(tx *sql.Tx) error {
		var old string
		if err := tx.QueryRowContext(ctx,
			`SELECT `+column+` FROM committees WHERE id = ?`, id).Scan(&old); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("committee %d: %w", id, common.ErrNotFound)
			}
			return fmt.Errorf("failed to read committee: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE committees SET `+column+` = ? WHERE id = ?`, value, id); err != nil {
			return fmt.Errorf("failed to update committee %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO committee_audit (committee_id, field, old_value, new_value)
			VALUES (?, ?, ?, ?)
		`, id, field, old, value); err != nil {
			return fmt.Errorf("failed to record audit row: %w", err)
		}
		return nil
	})
}
