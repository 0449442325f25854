package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/service"
)

// RefreshEvent signals that a forced refresh completed; a dashboard
// trigger subscribes to it.
type RefreshEvent struct {
	CompletedAt time.Time
	Candidates  int
	Races       int
}

type raceKey struct {
	office string
	cycle  int
}

// Cache serves precomputed aggregates without recomputing from the full
// ledger on every read. Entries are snapshot-style: a refresh computes the
// new value aside and swaps it in atomically, so readers keep seeing the
// previous snapshot until the swap. The ComputedAt stamp on every
// aggregate tells callers whether it reflects data ingested after a given
// point; read-after-write consistency requires an explicit ForceRefresh.
type Cache struct {
	engine      *Engine
	clock       service.Clock
	ttl         time.Duration
	mu          sync.RWMutex
	candidates  map[int64]*model.CandidateAggregate
	races       map[raceKey]*model.RaceAggregate
	subMu       sync.Mutex
	subscribers []chan RefreshEvent
}

// NewCache creates a cache over the engine with the given entry TTL.
func NewCache(engine *Engine, ttl time.Duration, clock service.Clock) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if clock == nil {
		clock = service.RealClock{}
	}
	return &Cache{
		engine:     engine,
		clock:      clock,
		ttl:        ttl,
		candidates: make(map[int64]*model.CandidateAggregate),
		races:      make(map[raceKey]*model.RaceAggregate),
	}
}

func (c *Cache) fresh(computedAt time.Time) bool {
	return c.clock.Now().Sub(computedAt) < c.ttl
}

// Candidate returns the cached per-candidate aggregate, recomputing and
// swapping a new snapshot in when the entry is missing or past its TTL.
func (c *Cache) Candidate(ctx context.Context, committeeID int64) (*model.CandidateAggregate, error) {
	c.mu.RLock()
	cached, ok := c.candidates[committeeID]
	c.mu.RUnlock()
	if ok && c.fresh(cached.ComputedAt) {
		return cached, nil
	}

	// Compute outside the lock; concurrent readers keep the old snapshot.
	agg, err := c.engine.CandidateAggregate(ctx, committeeID)
	if err != nil {
		if ok {
			// Serve the stale snapshot rather than nothing; the caller can
			// see its age on ComputedAt.
			return cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.candidates[committeeID] = agg
	c.mu.Unlock()
	return agg, nil
}

// Race returns the cached per-race rollup, recomputing on miss or expiry.
func (c *Cache) Race(ctx context.Context, office string, cycle int) (*model.RaceAggregate, error) {
	key := raceKey{office: office, cycle: cycle}

	c.mu.RLock()
	cached, ok := c.races[key]
	c.mu.RUnlock()
	if ok && c.fresh(cached.ComputedAt) {
		return cached, nil
	}

	race, err := c.engine.RaceAggregate(ctx, office, cycle)
	if err != nil {
		if ok {
			return cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.races[key] = race
	c.mu.Unlock()
	return race, nil
}

// ForceRefresh recomputes every cached aggregate, candidate-level entries
// first and then the race rollups derived from them, and notifies
// subscribers when the swap is complete. Callers run it after a bulk
// import to regain read-after-write consistency.
func (c *Cache) ForceRefresh(ctx context.Context) error {
	c.mu.RLock()
	candidateIDs := make([]int64, 0, len(c.candidates))
	for id := range c.candidates {
		candidateIDs = append(candidateIDs, id)
	}
	raceKeys := make([]raceKey, 0, len(c.races))
	for key := range c.races {
		raceKeys = append(raceKeys, key)
	}
	c.mu.RUnlock()

	// Candidate aggregates first: race rollups derive from them, so
	// refreshing only the summaries would serve races built on stale
	// candidate data.
	newCandidates := make(map[int64]*model.CandidateAggregate, len(candidateIDs))
	for _, id := range candidateIDs {
		agg, err := c.engine.CandidateAggregate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to refresh candidate aggregate %d: %w", id, err)
		}
		newCandidates[id] = agg
	}

	newRaces := make(map[raceKey]*model.RaceAggregate, len(raceKeys))
	for _, key := range raceKeys {
		race, err := c.engine.RaceAggregate(ctx, key.office, key.cycle)
		if err != nil {
			return fmt.Errorf("failed to refresh race aggregate %s/%d: %w", key.office, key.cycle, err)
		}
		newRaces[key] = race
	}

	c.mu.Lock()
	for id, agg := range newCandidates {
		c.candidates[id] = agg
	}
	for key, race := range newRaces {
		c.races[key] = race
	}
	c.mu.Unlock()

	event := RefreshEvent{
		CompletedAt: c.clock.Now(),
		Candidates:  len(newCandidates),
		Races:       len(newRaces),
	}
	c.notify(event)

	slog.Info("Aggregate cache refreshed",
		"candidates", event.Candidates,
		"races", event.Races)
	return nil
}

// Invalidate drops every cached entry, forcing recomputation on next read.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = make(map[int64]*model.CandidateAggregate)
	c.races = make(map[raceKey]*model.RaceAggregate)
}

// Subscribe returns a channel that receives a RefreshEvent after each
// completed ForceRefresh. Slow subscribers miss events rather than
// blocking a refresh.
func (c *Cache) Subscribe() <-chan RefreshEvent {
	ch := make(chan RefreshEvent, 1)
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Cache) notify(event RefreshEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
