// Package repair makes every transaction's committee references resolvable.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
)

// Store is the slice of the storage layer reference repair needs.
type Store interface {
	DanglingTargets(ctx context.Context) (map[int64][]int64, error)
	GetEntity(ctx context.Context, id int64) (*model.Entity, error)
	GetPlaceholderByEntity(ctx context.Context, entityID int64) (*model.Committee, error)
	AllocatePlaceholderID(ctx context.Context) (int64, error)
	CreateCommittee(ctx context.Context, committee *model.Committee) (int64, error)
	SetTransactionTargets(ctx context.Context, ids []int64, targetID int64) error
	NullTransactionTargets(ctx context.Context, ids []int64) error
}

// Stats reports what a repair run did.
type Stats struct {
	PlaceholdersCreated int
	PlaceholdersReused  int
	TargetsRepointed    int
	TargetsCleared      int
}

// Run repairs every transaction whose target committee id does not resolve.
//
// A dangling id that matches a candidate-like or committee-like entity gets
// a placeholder committee from the reserved negative id range, bound to
// that entity; the transactions are repointed at the placeholder. Any other
// dangling id is unrecoverable and the targets are cleared to null.
//
// The run is idempotent: an entity that already has a placeholder reuses
// it, and a second run over a repaired ledger finds nothing to do.
func Run(ctx context.Context, store Store) (Stats, error) {
	var stats Stats

	dangling, err := store.DanglingTargets(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to find dangling targets: %w", err)
	}

	for targetID, txnIDs := range dangling {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		entity, err := store.GetEntity(ctx, targetID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return stats, fmt.Errorf("failed to look up entity %d: %w", targetID, err)
		}

		if entity == nil || !entity.CommitteeLike() {
			if err := store.NullTransactionTargets(ctx, txnIDs); err != nil {
				return stats, fmt.Errorf("failed to clear targets for %d: %w", targetID, err)
			}
			stats.TargetsCleared += len(txnIDs)
			slog.Debug("Cleared unrecoverable target references",
				"target", targetID,
				"transactions", len(txnIDs))
			continue
		}

		placeholderID, created, err := ensurePlaceholder(ctx, store, entity)
		if err != nil {
			return stats, err
		}
		if created {
			stats.PlaceholdersCreated++
		} else {
			stats.PlaceholdersReused++
		}

		if err := store.SetTransactionTargets(ctx, txnIDs, placeholderID); err != nil {
			return stats, fmt.Errorf("failed to repoint targets at placeholder %d: %w", placeholderID, err)
		}
		stats.TargetsRepointed += len(txnIDs)
	}

	slog.Info("Reference repair complete",
		"placeholders_created", stats.PlaceholdersCreated,
		"placeholders_reused", stats.PlaceholdersReused,
		"targets_repointed", stats.TargetsRepointed,
		"targets_cleared", stats.TargetsCleared)
	return stats, nil
}

// ensurePlaceholder finds or synthesizes the placeholder committee for an
// entity. Existing placeholders are always preferred over allocating.
func ensurePlaceholder(ctx context.Context, store Store, entity *model.Entity) (int64, bool, error) {
	existing, err := store.GetPlaceholderByEntity(ctx, entity.ID)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return 0, false, fmt.Errorf("failed to look up placeholder for entity %d: %w", entity.ID, err)
	}

	id, err := store.AllocatePlaceholderID(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to allocate placeholder id: %w", err)
	}

	placeholder := &model.Committee{ID: id, EntityID: entity.ID}
	if entity.Kind == model.KindCandidate {
		placeholder.CandidateFirst = entity.FirstName
		placeholder.CandidateLast = entity.LastName
	}
	if _, err := store.CreateCommittee(ctx, placeholder); err != nil {
		return 0, false, fmt.Errorf("failed to create placeholder committee: %w", err)
	}

	slog.Debug("Synthesized placeholder committee",
		"committee", id,
		"entity", entity.ID)
	return id, true, nil
}
