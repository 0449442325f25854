package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/testutil"
)

func TestCacheServesSnapshotUntilExpiry(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRace(t, db)
	db.SeedIE(ctx, 300, 30, "100.00", 12, model.True, 0)

	engine, clock := newTestEngine(db)
	cache := NewCache(engine, 10*time.Minute, clock)

	first, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "100.00", first.Support.StringFixed(2))

	// New spending lands after the snapshot was computed.
	db.SeedIE(ctx, 300, 30, "900.00", 12, model.True, 1)

	within, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "100.00", within.Support.StringFixed(2), "entry inside TTL must not recompute")
	assert.Equal(t, first.ComputedAt, within.ComputedAt)

	clock.advance(11 * time.Minute)

	expired, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", expired.Support.StringFixed(2))
	assert.True(t, expired.ComputedAt.After(first.ComputedAt))
}

func TestCacheForceRefresh(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRace(t, db)
	db.SeedIE(ctx, 300, 30, "100.00", 12, model.True, 0)

	engine, clock := newTestEngine(db)
	cache := NewCache(engine, time.Hour, clock)
	events := cache.Subscribe()

	_, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	_, err = cache.Race(ctx, "City Council District 4", 2024)
	require.NoError(t, err)

	db.SeedIE(ctx, 300, 30, "400.00", 12, model.True, 1)
	require.NoError(t, cache.ForceRefresh(ctx))

	// Read-after-write without waiting out the TTL.
	agg, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "500.00", agg.Support.StringFixed(2))

	race, err := cache.Race(ctx, "City Council District 4", 2024)
	require.NoError(t, err)
	require.NotEmpty(t, race.Candidates)
	assert.Equal(t, "500.00", race.Candidates[0].Total().StringFixed(2))

	select {
	case event := <-events:
		assert.Equal(t, 1, event.Candidates)
		assert.Equal(t, 1, event.Races)
	default:
		t.Fatal("expected a refresh event")
	}
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRace(t, db)
	db.SeedIE(ctx, 300, 30, "100.00", 12, model.True, 0)

	engine, clock := newTestEngine(db)
	cache := NewCache(engine, time.Hour, clock)

	_, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)

	db.SeedIE(ctx, 300, 30, "50.00", 12, model.False, 1)
	cache.Invalidate()

	agg, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "50.00", agg.Oppose.StringFixed(2))
}

func TestCacheServesStaleOnComputeFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRace(t, db)
	db.SeedIE(ctx, 300, 30, "100.00", 12, model.True, 0)

	engine, clock := newTestEngine(db)
	cache := NewCache(engine, time.Minute, clock)

	first, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)

	// Expire the entry, then make recomputation impossible.
	clock.advance(2 * time.Minute)
	require.NoError(t, db.Storage.Close())

	stale, err := cache.Candidate(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, first.ComputedAt, stale.ComputedAt)
	assert.Equal(t, "100.00", stale.Support.StringFixed(2))
}
