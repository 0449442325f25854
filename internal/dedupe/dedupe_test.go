package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
)

// fakeStore keeps duplicate groups in memory and applies removals the way
// the ledger would.
type fakeStore struct {
	groups   [][]model.Transaction
	removed  []int64
	failOnce bool
}

func (f *fakeStore) DuplicateGroups(_ context.Context, limit int) ([][]model.Transaction, error) {
	if f.failOnce {
		f.failOnce = false
		return nil, errors.New("disk gremlins")
	}
	if limit < len(f.groups) {
		return f.groups[:limit], nil
	}
	return f.groups, nil
}

func (f *fakeStore) RemoveDuplicates(_ context.Context, keepID int64, removeIDs []int64) error {
	for _, id := range removeIDs {
		if id == keepID {
			return errors.New("cannot remove survivor")
		}
		f.removed = append(f.removed, id)
	}
	var remaining [][]model.Transaction
	for _, group := range f.groups {
		var members []model.Transaction
		for _, txn := range group {
			kept := true
			for _, id := range removeIDs {
				if txn.ID == id {
					kept = false
				}
			}
			if kept {
				members = append(members, txn)
			}
		}
		if len(members) > 1 {
			remaining = append(remaining, members)
		}
	}
	f.groups = remaining
	return nil
}

func txnWithID(id int64) model.Transaction {
	return model.Transaction{
		ID:          id,
		CommitteeID: 200,
		EntityID:    100,
		Amount:      decimal.RequireFromString("100.00"),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:        model.TxnContribution,
	}
}

func TestRunCollapsesGroupsKeepingLowestID(t *testing.T) {
	store := &fakeStore{groups: [][]model.Transaction{
		{txnWithID(1), txnWithID(5), txnWithID(9)},
		{txnWithID(2), txnWithID(3)},
	}}

	stats, err := New(store, 10).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.GroupsCollapsed)
	assert.Equal(t, 3, stats.RowsRemoved)
	assert.ElementsMatch(t, []int64{5, 9, 3}, store.removed)
	assert.Empty(t, store.groups)
}

func TestRunDrainsBeyondBatchSize(t *testing.T) {
	store := &fakeStore{groups: [][]model.Transaction{
		{txnWithID(1), txnWithID(2)},
		{txnWithID(3), txnWithID(4)},
		{txnWithID(5), txnWithID(6)},
	}}

	// Batch of one forces a re-query per round; the pass still drains all
	// groups.
	stats, err := New(store, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.GroupsCollapsed)
	assert.Equal(t, 3, stats.RowsRemoved)
}

func TestRunIsIdempotent(t *testing.T) {
	store := &fakeStore{groups: [][]model.Transaction{
		{txnWithID(1), txnWithID(2)},
	}}

	_, err := New(store, 10).Run(context.Background())
	require.NoError(t, err)

	stats, err := New(store, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Len(t, store.removed, 1)
}

func TestRunPropagatesQueryErrors(t *testing.T) {
	store := &fakeStore{failOnce: true}

	_, err := New(store, 10).Run(context.Background())
	assert.Error(t, err)
}

func TestRunHonorsCancellation(t *testing.T) {
	store := &fakeStore{groups: [][]model.Transaction{
		{txnWithID(1), txnWithID(2)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := New(store, 10).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.GroupsCollapsed)
}
