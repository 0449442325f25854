// Package dedupe collapses ledger transactions that share a natural key.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calwatch/warchest/internal/model"
)

// Store is the slice of the storage layer the dedupe pass needs.
type Store interface {
	DuplicateGroups(ctx context.Context, limit int) ([][]model.Transaction, error)
	RemoveDuplicates(ctx context.Context, keepID int64, removeIDs []int64) error
}

// Stats reports what a repair pass did.
type Stats struct {
	GroupsCollapsed int
	RowsRemoved     int
}

// Pass is the standalone batch-cleanup run over an already-populated ledger.
type Pass struct {
	store     Store
	batchSize int
}

// New creates a dedupe pass. batchSize bounds how many duplicate groups are
// fetched per round; each group commits independently.
func New(store Store, batchSize int) *Pass {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Pass{store: store, batchSize: batchSize}
}

// Run collapses every duplicate group: the lowest-id (earliest-imported)
// member survives, supersedes links onto losers are rewritten to the
// survivor, then the losers are removed. The pass re-queries remaining
// groups after each round rather than walking an in-memory cursor, so a
// crash mid-run loses at most the current group and a re-run picks up
// exactly where the committed state left off.
func (p *Pass) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for {
		groups, err := p.store.DuplicateGroups(ctx, p.batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to find duplicate groups: %w", err)
		}
		if len(groups) == 0 {
			break
		}

		for _, group := range groups {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			default:
			}

			keep := group[0]
			removeIDs := make([]int64, 0, len(group)-1)
			for _, txn := range group[1:] {
				removeIDs = append(removeIDs, txn.ID)
			}

			if err := p.store.RemoveDuplicates(ctx, keep.ID, removeIDs); err != nil {
				return stats, fmt.Errorf("failed to collapse group for %d: %w", keep.ID, err)
			}

			stats.GroupsCollapsed++
			stats.RowsRemoved += len(removeIDs)

			slog.Debug("Collapsed duplicate group",
				"survivor", keep.ID,
				"removed", len(removeIDs))
		}
	}

	slog.Info("Dedupe pass complete",
		"groups_collapsed", stats.GroupsCollapsed,
		"rows_removed", stats.RowsRemoved)
	return stats, nil
}
