// Package aggregate computes derived spending views from the ledger and
// serves them through a snapshot cache. Aggregates are always re-derivable;
// the ledger stays the single source of truth.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/identity"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/service"
)

// Store is the slice of the storage layer the engine reads. All reads are
// read-only and may run concurrently with ingestion.
type Store interface {
	ListCommittees(ctx context.Context) ([]model.Committee, error)
	GetEntity(ctx context.Context, id int64) (*model.Entity, error)
	GetIETransactionsByTargets(ctx context.Context, targetIDs []int64) ([]model.Transaction, error)
	GetIncomeByCommittees(ctx context.Context, committeeIDs []int64) ([]model.Transaction, error)
}

// Engine computes spending aggregates over identity-grouped candidates.
type Engine struct {
	store    Store
	resolver *identity.Resolver
	clock    service.Clock
}

// NewEngine creates an aggregation engine.
func NewEngine(store Store, resolver *identity.Resolver, clock service.Clock) *Engine {
	if clock == nil {
		clock = service.RealClock{}
	}
	return &Engine{store: store, resolver: resolver, clock: clock}
}

// resolveRoster loads the committee roster and derives identity groups.
func (e *Engine) resolveRoster(ctx context.Context) ([]model.Committee, *model.Resolution, error) {
	committees, err := e.store.ListCommittees(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load committee roster: %w", err)
	}
	return committees, e.resolver.Resolve(committees), nil
}

// CandidateAggregate computes support/oppose IE totals for the candidate
// represented by the given committee, summed across the candidate's whole
// identity group so spending against any of their committee records counts
// once and only once.
func (e *Engine) CandidateAggregate(ctx context.Context, committeeID int64) (*model.CandidateAggregate, error) {
	committees, resolution, err := e.resolveRoster(ctx)
	if err != nil {
		return nil, err
	}
	return e.aggregateGroup(ctx, committees, identity.GroupFor(resolution, committeeID))
}

func (e *Engine) aggregateGroup(ctx context.Context, committees []model.Committee, group model.IdentityGroup) (*model.CandidateAggregate, error) {
	agg := &model.CandidateAggregate{
		ComputedAt:    e.clock.Now(),
		CandidateName: group.CandidateName,
		Office:        group.Office,
		CommitteeIDs:  group.CommitteeIDs,
		Cycle:         group.Cycle,
		Support:       decimal.Zero,
		Oppose:        decimal.Zero,
	}

	if agg.CandidateName == "" {
		if name, office, cycle, ok := describeGroup(committees, group.CommitteeIDs); ok {
			agg.CandidateName, agg.Office, agg.Cycle = name, office, cycle
		} else {
			// The referenced committee vanished between resolution and
			// read; serve a visibly partial aggregate instead of failing.
			agg.Incomplete = true
		}
	}

	transactions, err := e.store.GetIETransactionsByTargets(ctx, group.CommitteeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load IE transactions: %w", err)
	}

	for _, txn := range transactions {
		switch txn.Benefit {
		case model.True:
			agg.Support = agg.Support.Add(txn.Amount.Abs())
		case model.False:
			agg.Oppose = agg.Oppose.Add(txn.Amount.Abs())
		}
	}
	return agg, nil
}

func describeGroup(committees []model.Committee, ids []int64) (name, office string, cycle int, ok bool) {
	for _, c := range committees {
		for _, id := range ids {
			if c.ID == id {
				name = strings.TrimSpace(c.CandidateFirst + " " + c.CandidateLast)
				return name, c.Office, c.Cycle, true
			}
		}
	}
	return "", "", 0, false
}

// RaceAggregate rolls candidate aggregates up by (office, cycle). Ordering
// is leading spender first: total absolute IE amount descending, then
// representative committee id ascending for stability.
func (e *Engine) RaceAggregate(ctx context.Context, office string, cycle int) (*model.RaceAggregate, error) {
	committees, resolution, err := e.resolveRoster(ctx)
	if err != nil {
		return nil, err
	}

	race := &model.RaceAggregate{
		ComputedAt: e.clock.Now(),
		Office:     office,
		Cycle:      cycle,
	}

	for _, group := range resolution.Groups {
		if group.Cycle != cycle || !strings.EqualFold(group.Office, office) {
			continue
		}
		agg, err := e.aggregateGroup(ctx, committees, group)
		if err != nil {
			// Degrade to a visibly incomplete rollup rather than failing
			// the whole race view.
			slog.Warn("Skipping candidate in race rollup",
				"office", office,
				"cycle", cycle,
				"error", err)
			race.Incomplete = true
			continue
		}
		race.Candidates = append(race.Candidates, *agg)
	}

	sort.Slice(race.Candidates, func(i, j int) bool {
		a, b := race.Candidates[i], race.Candidates[j]
		if !a.Total().Equal(b.Total()) {
			return a.Total().GreaterThan(b.Total())
		}
		return representative(a) < representative(b)
	})
	return race, nil
}

func representative(a model.CandidateAggregate) int64 {
	if len(a.CommitteeIDs) == 0 {
		return 0
	}
	min := a.CommitteeIDs[0]
	for _, id := range a.CommitteeIDs[1:] {
		if id < min {
			min = id
		}
	}
	return min
}

// ThresholdReport classifies every candidate with IE activity against a
// dollar threshold on combined absolute spending and reports the multiple.
func (e *Engine) ThresholdReport(ctx context.Context, threshold decimal.Decimal) (*model.ThresholdReport, error) {
	if threshold.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: threshold must be positive", common.ErrInvalidConfig)
	}

	committees, resolution, err := e.resolveRoster(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.ThresholdReport{
		ComputedAt: e.clock.Now(),
		Threshold:  threshold,
	}

	for _, group := range resolution.Groups {
		agg, err := e.aggregateGroup(ctx, committees, group)
		if err != nil {
			return nil, err
		}
		total := agg.Total()
		if total.IsZero() {
			continue
		}
		report.Entries = append(report.Entries, model.ThresholdEntry{
			CandidateName: agg.CandidateName,
			Office:        agg.Office,
			Cycle:         agg.Cycle,
			Support:       agg.Support,
			Oppose:        agg.Oppose,
			Total:         total,
			Multiple:      total.Div(threshold).Round(1),
			Over:          total.GreaterThanOrEqual(threshold),
		})
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].Total.GreaterThan(report.Entries[j].Total)
	})
	return report, nil
}
