// Package ingest orchestrates import runs: normalization, the duplicate
// guard, rejection auditing, and restartable batch progress.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/normalize"
	"github.com/calwatch/warchest/internal/service"
)

// Store is the slice of the storage layer an import run needs.
type Store interface {
	ListEntityIDs(ctx context.Context) (map[int64]model.EntityKind, error)
	ListCommittees(ctx context.Context) ([]model.Committee, error)
	CreateEntity(ctx context.Context, entity *model.Entity) (int64, error)
	CreateCommittee(ctx context.Context, committee *model.Committee) (int64, error)
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, int, error)
	UpsertTransactions(ctx context.Context, transactions []model.Transaction) (int, int, error)
	RecordRejection(ctx context.Context, rejection *model.Rejection) error
	SeenRowHashes(ctx context.Context) (map[string]struct{}, error)
	SaveCursor(ctx context.Context, runID, source string, offset int) error
	GetCursor(ctx context.Context, runID, source string) (int, error)
}

// Source is one named stream of raw rows, typically a file.
type Source struct {
	Name string
	Rows []model.RawRow
}

func (s Source) isReference() bool {
	if len(s.Rows) == 0 {
		return false
	}
	switch s.Rows[0].Schema {
	case normalize.SchemaSOSEntities, normalize.SchemaSOSCommittees:
		return true
	}
	return false
}

// Config controls an import run.
type Config struct {
	RunID       string // resuming a crashed run reuses its id
	BatchSize   int
	Parallelism int // bounded parallelism across transaction sources
	Refresh     bool // natural-key collisions update in place instead of skipping
	DryRun      bool
	ShowBar     bool
}

// Importer drives import runs against one store.
type Importer struct {
	store     Store
	normalize normalize.Config
}

// New creates an importer with the given per-source parsing rules.
func New(store Store, cfg normalize.Config) *Importer {
	return &Importer{store: store, normalize: cfg}
}

// Run imports all sources, reference data first.
//
// Entity and committee sources run sequentially because they grow the id
// snapshot transaction rows resolve against. Transaction sources then run
// with bounded parallelism over a frozen snapshot: every partition's writes
// land in small per-batch database transactions, and a per-source cursor
// records the last committed batch so a crashed run resumes there.
func (i *Importer) Run(ctx context.Context, sources []Source, cfg Config) (*Report, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	report := newReport(cfg.RunID)

	seen, err := i.store.SeenRowHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed row hashes: %w", err)
	}

	var reference, transactions []Source
	for _, src := range sources {
		if src.isReference() {
			reference = append(reference, src)
		} else {
			transactions = append(transactions, src)
		}
	}

	snapshot, err := i.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	for _, src := range reference {
		if err := i.runReferenceSource(ctx, src, cfg, snapshot, seen, report); err != nil {
			return report, err
		}
	}

	// Re-read the snapshot so transaction rows resolve against everything
	// the reference phase created; it stays frozen from here on.
	if len(reference) > 0 {
		snapshot, err = i.loadSnapshot(ctx)
		if err != nil {
			return report, err
		}
	}

	var bar *progressbar.ProgressBar
	if cfg.ShowBar {
		total := 0
		for _, src := range transactions {
			total += len(src.Rows)
		}
		bar = progressbar.Default(int64(total), "importing")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for _, src := range transactions {
		src := src
		g.Go(func() error {
			return i.runTransactionSource(gctx, src, cfg, snapshot, seen, report, &mu, bar)
		})
	}
	if err := g.Wait(); err != nil {
		common.LogError(err, "Import run failed", common.Fields{"run_id": cfg.RunID})
		return report, err
	}

	report.finish()
	slog.Info("Import run complete",
		"run_id", cfg.RunID,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"rejected", report.Rejected)
	return report, nil
}

func (i *Importer) loadSnapshot(ctx context.Context) (normalize.Snapshot, error) {
	entities, err := i.store.ListEntityIDs(ctx)
	if err != nil {
		return normalize.Snapshot{}, fmt.Errorf("failed to snapshot entities: %w", err)
	}
	committees, err := i.store.ListCommittees(ctx)
	if err != nil {
		return normalize.Snapshot{}, fmt.Errorf("failed to snapshot committees: %w", err)
	}
	committeeIDs := make(map[int64]struct{}, len(committees))
	for _, c := range committees {
		committeeIDs[c.ID] = struct{}{}
	}
	return normalize.Snapshot{Entities: entities, Committees: committeeIDs}, nil
}

// runReferenceSource imports entity/committee rows one batch at a time,
// updating the shared snapshot as ids land.
func (i *Importer) runReferenceSource(ctx context.Context, src Source, cfg Config, snapshot normalize.Snapshot, seen map[string]struct{}, report *Report) error {
	normalizer := normalize.New(snapshot, i.normalize)

	offset, err := i.store.GetCursor(ctx, cfg.RunID, src.Name)
	if err != nil {
		return err
	}

	for offset < len(src.Rows) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + cfg.BatchSize
		if end > len(src.Rows) {
			end = len(src.Rows)
		}

		for _, row := range src.Rows[offset:end] {
			hash := row.Hash()
			if _, done := seen[hash]; done {
				report.addSkipped(1)
				continue
			}

			record, err := normalizer.Normalize(row)
			if err != nil {
				if rejErr := i.recordReject(ctx, cfg, hash, err, report); rejErr != nil {
					return rejErr
				}
				continue
			}

			if cfg.DryRun {
				report.addCreated(1)
				continue
			}

			// Reference rows carry authoritative ids; one the snapshot
			// already knows was imported by an earlier run.
			switch {
			case record.Entity != nil:
				if _, known := snapshot.Entities[record.Entity.ID]; known {
					report.addSkipped(1)
					continue
				}
				id, err := i.store.CreateEntity(ctx, record.Entity)
				if err != nil {
					return fmt.Errorf("source %s: %w", src.Name, err)
				}
				snapshot.Entities[id] = record.Entity.Kind
			case record.Committee != nil:
				if _, known := snapshot.Committees[record.Committee.ID]; known {
					report.addSkipped(1)
					continue
				}
				id, err := i.store.CreateCommittee(ctx, record.Committee)
				if err != nil {
					return fmt.Errorf("source %s: %w", src.Name, err)
				}
				snapshot.Committees[id] = struct{}{}
			}
			seen[hash] = struct{}{}
			report.addCreated(1)
		}

		offset = end
		if !cfg.DryRun {
			if err := i.store.SaveCursor(ctx, cfg.RunID, src.Name, offset); err != nil {
				return err
			}
		}
	}
	return nil
}

// runTransactionSource imports transaction rows in independently committed
// batches against the frozen snapshot.
func (i *Importer) runTransactionSource(ctx context.Context, src Source, cfg Config, snapshot normalize.Snapshot, seen map[string]struct{}, report *Report, mu *sync.Mutex, bar *progressbar.ProgressBar) error {
	normalizer := normalize.New(snapshot, i.normalize)

	offset, err := i.store.GetCursor(ctx, cfg.RunID, src.Name)
	if err != nil {
		return err
	}
	if bar != nil && offset > 0 {
		_ = bar.Add(offset)
	}

	for offset < len(src.Rows) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + cfg.BatchSize
		if end > len(src.Rows) {
			end = len(src.Rows)
		}

		var batch []model.Transaction
		var warnings []model.Rejection
		for _, row := range src.Rows[offset:end] {
			if bar != nil {
				_ = bar.Add(1)
			}

			hash := row.Hash()
			mu.Lock()
			_, done := seen[hash]
			mu.Unlock()
			if done {
				report.addSkipped(1)
				continue
			}

			record, err := normalizer.Normalize(row)
			if err != nil {
				if rejErr := i.recordReject(ctx, cfg, hash, err, report); rejErr != nil {
					return rejErr
				}
				continue
			}
			if record.Transaction == nil {
				// reference row in a transaction source; schema misuse
				if rejErr := i.recordReject(ctx, cfg, hash,
					&normalize.RejectError{Reason: model.ReasonUnknownSchema,
						Detail: "reference row in transaction source"}, report); rejErr != nil {
					return rejErr
				}
				continue
			}

			record.Transaction.ImportRunID = cfg.RunID
			batch = append(batch, *record.Transaction)
			warnings = append(warnings, record.Warnings...)
		}

		if !cfg.DryRun && len(batch) > 0 {
			// Batch writes from parallel partitions contend on the single
			// SQLite connection; transient busy errors get retried.
			var created, other int
			save := func() error {
				var err error
				if cfg.Refresh {
					created, other, err = i.store.UpsertTransactions(ctx, batch)
				} else {
					created, other, err = i.store.SaveTransactions(ctx, batch)
				}
				return err
			}
			if err := common.WithRetry(ctx, save, service.RetryOptions{}); err != nil {
				return fmt.Errorf("source %s: batch at offset %d: %w", src.Name, offset, err)
			}
			if cfg.Refresh {
				report.addUpdated(other)
			} else {
				report.addSkipped(other)
			}
			report.addCreated(created)

			mu.Lock()
			for _, txn := range batch {
				seen[txn.SourceHash] = struct{}{}
			}
			mu.Unlock()

			for w := range warnings {
				warning := warnings[w]
				warning.RunID = cfg.RunID
				if err := i.store.RecordRejection(ctx, &warning); err != nil {
					return err
				}
				report.addWarning(warning)
			}
		} else if cfg.DryRun {
			report.addCreated(len(batch))
		}

		offset = end
		if !cfg.DryRun {
			if err := i.store.SaveCursor(ctx, cfg.RunID, src.Name, offset); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordReject audits one per-row rejection; per-row errors never abort a
// batch.
func (i *Importer) recordReject(ctx context.Context, cfg Config, rowHash string, err error, report *Report) error {
	var rejectErr *normalize.RejectError
	if !errors.As(err, &rejectErr) {
		return err
	}

	rejection := model.Rejection{
		RunID:   cfg.RunID,
		RowHash: rowHash,
		Reason:  rejectErr.Reason,
		Detail:  rejectErr.Detail,
	}
	if !cfg.DryRun {
		if err := i.store.RecordRejection(ctx, &rejection); err != nil {
			return err
		}
	}
	report.addRejection(rejection)
	return nil
}
