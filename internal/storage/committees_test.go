package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/model"
)

func TestCommitteeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedLedger(t, store)

	formed := time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)
	id, err := store.CreateCommittee(ctx, &model.Committee{
		EntityID:       102,
		CandidateFirst: "Robert",
		CandidateLast:  "Jones",
		Office:         "City Council District 4",
		Party:          "NP",
		Cycle:          2024,
		Incumbent:      model.True,
		FormedDate:     &formed,
	})
	require.NoError(t, err)

	got, err := store.GetCommittee(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Robert", got.CandidateFirst)
	assert.Equal(t, model.True, got.Incumbent)
	require.NotNil(t, got.FormedDate)
	assert.Equal(t, formed.Format("2006-01-02"), got.FormedDate.Format("2006-01-02"))
	assert.True(t, got.IsCandidate())
	assert.False(t, got.IsPlaceholder())

	_, err = store.GetCommittee(ctx, 424242)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAllocatePlaceholderIDNeverRepeats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.AllocatePlaceholderID(ctx)
	require.NoError(t, err)
	second, err := store.AllocatePlaceholderID(ctx)
	require.NoError(t, err)

	assert.Negative(t, first)
	assert.Negative(t, second)
	assert.Less(t, second, first)
}

func TestPlaceholderLookupByEntity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedLedger(t, store)

	_, err := store.GetPlaceholderByEntity(ctx, 102)
	require.ErrorIs(t, err, common.ErrNotFound)

	id, err := store.AllocatePlaceholderID(ctx)
	require.NoError(t, err)
	_, err = store.CreateCommittee(ctx, &model.Committee{ID: id, EntityID: 102})
	require.NoError(t, err)

	placeholder, err := store.GetPlaceholderByEntity(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, id, placeholder.ID)
	assert.True(t, placeholder.IsPlaceholder())

	// One placeholder per entity; a second insert violates the arena index.
	again, err := store.AllocatePlaceholderID(ctx)
	require.NoError(t, err)
	_, err = store.CreateCommittee(ctx, &model.Committee{ID: again, EntityID: 102})
	assert.Error(t, err)
}

func TestUpdateCommitteeClassification(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedLedger(t, store)

	require.NoError(t, store.UpdateCommitteeClassification(ctx, 200, "office", "Mayor"))
	require.NoError(t, store.UpdateCommitteeClassification(ctx, 200, "cycle", "2024"))

	got, err := store.GetCommittee(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, "Mayor", got.Office)
	assert.Equal(t, 2024, got.Cycle)

	assert.Error(t, store.UpdateCommitteeClassification(ctx, 200, "party", "NP"),
		"only resolver-owned fields are writable")
	assert.Error(t, store.UpdateCommitteeClassification(ctx, 200, "office", " "))

	var audited int
	err = store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM committee_audit WHERE committee_id = 200`).Scan(&audited)
	require.NoError(t, err)
	assert.Equal(t, 2, audited)
}
