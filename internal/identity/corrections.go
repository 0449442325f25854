package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calwatch/warchest/internal/model"
)

// CorrectionStore applies classification updates with an audit trail.
type CorrectionStore interface {
	UpdateCommitteeClassification(ctx context.Context, id int64, field, value string) error
}

// ApplyCorrections writes the proposed backfill to the ledger, one audited
// update per correction. It is the explicit second step after Resolve;
// nothing applies corrections implicitly.
func ApplyCorrections(ctx context.Context, store CorrectionStore, corrections []model.Correction) (int, error) {
	applied := 0
	for _, c := range corrections {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		default:
		}

		if err := store.UpdateCommitteeClassification(ctx, c.CommitteeID, c.Field, c.Value); err != nil {
			return applied, fmt.Errorf("failed to apply %s correction to committee %d: %w",
				c.Field, c.CommitteeID, err)
		}
		applied++

		slog.Info("Applied classification correction",
			"committee", c.CommitteeID,
			"field", c.Field,
			"value", c.Value,
			"source_committee", c.SourceCommittee)
	}
	return applied, nil
}
