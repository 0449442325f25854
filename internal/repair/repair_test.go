package repair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/testutil"
)

func setup(t *testing.T) *testutil.TestDB {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedEntity(ctx, 30, model.KindOrganization, "Golden State Futures PAC")
	db.SeedCommittee(ctx, model.Committee{ID: 300, EntityID: 30})
	return db
}

func TestRunSynthesizesPlaceholderForCandidateEntity(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	// Entity 55 is a candidate the committee export never covered.
	db.Storage.CreateEntity(ctx, &model.Entity{
		ID: 55, FirstName: "Maria", LastName: "Vega", Kind: model.KindCandidate,
	})
	txnID := db.SeedIE(ctx, 300, 30, "750.00", 55, model.False, 0)

	stats, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PlaceholdersCreated)
	assert.Equal(t, 1, stats.TargetsRepointed)
	assert.Equal(t, 0, stats.TargetsCleared)

	placeholder, err := db.Storage.GetPlaceholderByEntity(ctx, 55)
	require.NoError(t, err)
	assert.True(t, placeholder.IsPlaceholder())
	assert.Equal(t, "Maria", placeholder.CandidateFirst)
	assert.Equal(t, "Vega", placeholder.CandidateLast)

	repaired, err := db.Storage.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	require.NotNil(t, repaired.TargetCommitteeID)
	assert.Equal(t, placeholder.ID, *repaired.TargetCommitteeID)
}

func TestRunClearsUnrecoverableTargets(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	// Target 100 is a plain organization, target 999 matches nothing.
	db.SeedEntity(ctx, 100, model.KindOrganization, "Acme Corp")
	orgTarget := db.SeedIE(ctx, 300, 30, "10.00", 100, model.True, 0)
	ghostTarget := db.SeedIE(ctx, 300, 30, "20.00", 999, model.True, 1)

	stats, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PlaceholdersCreated)
	assert.Equal(t, 2, stats.TargetsCleared)

	for _, id := range []int64{orgTarget, ghostTarget} {
		txn, err := db.Storage.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, txn.TargetCommitteeID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	db.Storage.CreateEntity(ctx, &model.Entity{
		ID: 55, LastName: "Vega", Kind: model.KindCandidate,
	})
	db.SeedIE(ctx, 300, 30, "750.00", 55, model.False, 0)

	first, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	require.Equal(t, 1, first.PlaceholdersCreated)

	// Nothing dangles after the first run.
	second, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, second)
}

func TestRunReusesExistingPlaceholder(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	db.Storage.CreateEntity(ctx, &model.Entity{
		ID: 55, LastName: "Vega", Kind: model.KindCandidate,
	})
	db.SeedIE(ctx, 300, 30, "750.00", 55, model.False, 0)

	_, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	placeholder, err := db.Storage.GetPlaceholderByEntity(ctx, 55)
	require.NoError(t, err)

	// A later import dangles at the same entity again.
	db.SeedIE(ctx, 300, 30, "80.00", 55, model.True, 1)
	stats, err := Run(ctx, db.Storage)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PlaceholdersCreated)
	assert.Equal(t, 1, stats.PlaceholdersReused)

	again, err := db.Storage.GetPlaceholderByEntity(ctx, 55)
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, again.ID)
}
