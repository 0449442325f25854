// Package testutil provides shared helpers for tests that need a real
// migrated database and seeded ledger data.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/service"
	"github.com/calwatch/warchest/internal/storage"
)

// TestDB is an in-memory database migrated to the current schema.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates an in-memory database, runs migrations, and registers
// cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return &TestDB{Storage: store, t: t}
}

// SeedEntity inserts an entity with an explicit id and returns it.
func (db *TestDB) SeedEntity(ctx context.Context, id int64, kind model.EntityKind, name string) *model.Entity {
	db.t.Helper()
	entity := &model.Entity{ID: id, Kind: kind, LastName: name}
	if _, err := db.Storage.CreateEntity(ctx, entity); err != nil {
		db.t.Fatalf("failed to seed entity %d: %v", id, err)
	}
	return entity
}

// SeedCommittee inserts a committee with an explicit id and returns it.
func (db *TestDB) SeedCommittee(ctx context.Context, committee model.Committee) *model.Committee {
	db.t.Helper()
	if _, err := db.Storage.CreateCommittee(ctx, &committee); err != nil {
		db.t.Fatalf("failed to seed committee %d: %v", committee.ID, err)
	}
	return &committee
}

// SeedCandidate inserts a person entity plus a candidate committee for it.
func (db *TestDB) SeedCandidate(ctx context.Context, entityID, committeeID int64, first, last, office string, cycle int) *model.Committee {
	db.t.Helper()
	db.SeedEntity(ctx, entityID, model.KindCandidate, first+" "+last)
	return db.SeedCommittee(ctx, model.Committee{
		ID:             committeeID,
		EntityID:       entityID,
		CandidateFirst: first,
		CandidateLast:  last,
		Office:         office,
		Cycle:          cycle,
	})
}

// SeedTransaction inserts one transaction, computing its natural key hash,
// and returns its id.
func (db *TestDB) SeedTransaction(ctx context.Context, txn model.Transaction) int64 {
	db.t.Helper()
	if txn.Date.IsZero() {
		txn.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	}
	if txn.NaturalKeyHash == "" {
		txn.NaturalKeyHash = txn.NaturalKey()
	}
	created, _, err := db.Storage.SaveTransactions(ctx, []model.Transaction{txn})
	if err != nil {
		db.t.Fatalf("failed to seed transaction: %v", err)
	}
	if created != 1 {
		db.t.Fatalf("seed transaction was skipped as a duplicate")
	}

	txns, err := db.Storage.GetTransactions(ctx, listAllFilter())
	if err != nil {
		db.t.Fatalf("failed to read back seeded transaction: %v", err)
	}
	for _, got := range txns {
		if got.NaturalKeyHash == txn.NaturalKeyHash && got.SourceHash == txn.SourceHash {
			return got.ID
		}
	}
	db.t.Fatalf("seeded transaction not found")
	return 0
}

// SeedIE inserts an independent expenditure and returns its id.
func (db *TestDB) SeedIE(ctx context.Context, committeeID, entityID int64, amount string, target int64, benefit model.TriBool, seq int) int64 {
	db.t.Helper()
	txn := model.Transaction{
		CommitteeID: committeeID,
		EntityID:    entityID,
		Amount:      Amount(db.t, amount),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, seq),
		Type:        model.TxnIndependent,
		Benefit:     benefit,
	}
	if target != 0 {
		txn.TargetCommitteeID = &target
	}
	return db.SeedTransaction(ctx, txn)
}

func listAllFilter() service.TransactionFilter {
	return service.TransactionFilter{IncludeDeleted: true}
}

// Amount parses a decimal literal, failing the test on bad input.
func Amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount literal %q: %v", s, err)
	}
	return d
}
