package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/service"
)

func TestEntityRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateEntity(ctx, &model.Entity{
		FirstName:  "Dana",
		LastName:   "Whitfield",
		City:       "Sacramento",
		State:      "CA",
		Occupation: "Consultant",
		Kind:       model.KindPerson,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := store.GetEntity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dana Whitfield", got.DisplayName())
	assert.Equal(t, model.KindPerson, got.Kind)

	_, err = store.GetEntity(ctx, 424242)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateEntityKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateEntity(ctx, &model.Entity{ID: 7001, LastName: "Acme Corp", Kind: model.KindOrganization})
	require.NoError(t, err)
	assert.Equal(t, int64(7001), id)

	ids, err := store.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.KindOrganization, ids[7001])
}

func mergeFixture(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()
	seedLedger(t, store)

	// Entity 102 is a duplicate of 100 with its own activity.
	dupTxn := testTxn("25.00", 5)
	dupTxn.EntityID = 102
	_, _, err := store.SaveTransactions(ctx, []model.Transaction{testTxn("10.00", 1), dupTxn})
	require.NoError(t, err)

	_, err = store.CreateCommittee(ctx, &model.Committee{ID: 201, EntityID: 102})
	require.NoError(t, err)
}

func TestMergeEntitiesReassignsEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mergeFixture(t, store)

	reassigned, err := store.MergeEntities(ctx, 100, []int64{102})
	require.NoError(t, err)
	assert.Equal(t, 1, reassigned)

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	for _, txn := range txns {
		assert.Equal(t, int64(100), txn.EntityID)
	}

	committee, err := store.GetCommittee(ctx, 201)
	require.NoError(t, err)
	assert.Equal(t, int64(100), committee.EntityID)
}

func TestMergeEntitiesRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mergeFixture(t, store)

	boom := errors.New("simulated failure")
	store.mergeHook = func(step int) error { return boom }

	_, err := store.MergeEntities(ctx, 100, []int64{102})
	require.ErrorIs(t, err, common.ErrInconsistentMerge)

	// Nothing moved: the duplicate still owns its transaction and committee.
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	owners := make(map[int64]int)
	for _, txn := range txns {
		owners[txn.EntityID]++
	}
	assert.Equal(t, 1, owners[102])

	committee, err := store.GetCommittee(ctx, 201)
	require.NoError(t, err)
	assert.Equal(t, int64(102), committee.EntityID)
}

func TestMergeEntitiesPartialFailureLeavesNoHalfMergedEntity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mergeFixture(t, store)

	// Extra duplicate so the merge has two steps; fail after the first.
	_, err := store.CreateEntity(ctx, &model.Entity{ID: 103, LastName: "Acme Corp LLC", Kind: model.KindOrganization})
	require.NoError(t, err)
	extra := testTxn("33.00", 9)
	extra.EntityID = 103
	_, _, err = store.SaveTransactions(ctx, []model.Transaction{extra})
	require.NoError(t, err)

	store.mergeHook = func(step int) error {
		if step == 1 {
			return errors.New("crash between duplicates")
		}
		return nil
	}

	_, err = store.MergeEntities(ctx, 100, []int64{102, 103})
	require.ErrorIs(t, err, common.ErrInconsistentMerge)

	// The first duplicate's reassignment rolled back with the second's.
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	owners := make(map[int64]int)
	for _, txn := range txns {
		owners[txn.EntityID]++
	}
	assert.Equal(t, 1, owners[102])
	assert.Equal(t, 1, owners[103])
}

func TestMergeEntitiesValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedLedger(t, store)

	_, err := store.MergeEntities(ctx, 100, nil)
	assert.Error(t, err)

	_, err = store.MergeEntities(ctx, 100, []int64{100})
	assert.Error(t, err)

	_, err = store.MergeEntities(ctx, 424242, []int64{100})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMergeEntitiesSerializesOverlappingSets(t *testing.T) {
	store := newTestStore(t)
	seedLedger(t, store)

	release, err := store.lockEntities([]int64{100, 102})
	require.NoError(t, err)

	_, err = store.MergeEntities(context.Background(), 100, []int64{102})
	assert.ErrorIs(t, err, common.ErrMergeInProgress)

	release()

	_, err = store.MergeEntities(context.Background(), 100, []int64{102})
	assert.NoError(t, err)
}
