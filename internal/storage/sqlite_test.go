package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedLedger(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	for id, name := range map[int64]string{100: "Acme Corp", 101: "Friends of Wong", 102: "Jones"} {
		_, err := store.CreateEntity(ctx, &model.Entity{ID: id, LastName: name, Kind: model.KindOrganization})
		require.NoError(t, err)
	}
	_, err := store.CreateCommittee(ctx, &model.Committee{ID: 200, EntityID: 101})
	require.NoError(t, err)
}

func testTxn(amount string, day int) model.Transaction {
	return model.Transaction{
		CommitteeID: 200,
		EntityID:    100,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Type:        model.TxnContribution,
	}
}

func TestMigrateReachesExpectedVersion(t *testing.T) {
	store := newTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	offset, err := store.GetCursor(ctx, "run-1", "txns.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	require.NoError(t, store.SaveCursor(ctx, "run-1", "txns.csv", 200))
	require.NoError(t, store.SaveCursor(ctx, "run-1", "txns.csv", 400))

	offset, err = store.GetCursor(ctx, "run-1", "txns.csv")
	require.NoError(t, err)
	assert.Equal(t, 400, offset)

	// Cursors are scoped per run and source.
	offset, err = store.GetCursor(ctx, "run-2", "txns.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestRejectionAudit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RecordRejection(ctx, &model.Rejection{
		RunID:   "run-1",
		RowHash: "abc",
		Reason:  model.ReasonUnparseableField,
		Detail:  "amount \"x\" is not a number",
	}))
	require.NoError(t, store.RecordRejection(ctx, &model.Rejection{
		RunID:   "run-1",
		RowHash: "def",
		Reason:  model.ReasonUnresolvedOptionalFK,
		Detail:  "target committee 999 is not in the ledger",
	}))

	rejections, err := store.GetRejectionsByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rejections, 2)

	none, err := store.GetRejectionsByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSeenRowHashes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedLedger(t, store)

	txn := testTxn("10.00", 1)
	txn.SourceHash = "txn-hash"
	_, _, err := store.SaveTransactions(ctx, []model.Transaction{txn})
	require.NoError(t, err)

	require.NoError(t, store.RecordRejection(ctx, &model.Rejection{
		RunID: "run-1", RowHash: "rejected-hash", Reason: model.ReasonUnparseableField,
	}))
	// A warning does not by itself mark a row processed; only the stored
	// transaction's source hash does.
	require.NoError(t, store.RecordRejection(ctx, &model.Rejection{
		RunID: "run-1", RowHash: "warned-hash", Reason: model.ReasonUnresolvedOptionalFK,
	}))

	seen, err := store.SeenRowHashes(ctx)
	require.NoError(t, err)
	assert.Contains(t, seen, "txn-hash")
	assert.Contains(t, seen, "rejected-hash")
	assert.NotContains(t, seen, "warned-hash")
}
