package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/identity"
	"github.com/calwatch/warchest/internal/model"
)

// DonorTrace produces the two-hop attribution donor → IE committee →
// candidate for the candidate represented by the given committee.
//
// Hop one walks only IE transactions with a target; hop two walks only
// income-direction transactions into the spending committees. Other
// transaction types never cross a hop.
func (e *Engine) DonorTrace(ctx context.Context, committeeID int64) (*model.DonorTrace, error) {
	committees, resolution, err := e.resolveRoster(ctx)
	if err != nil {
		return nil, err
	}
	group := identity.GroupFor(resolution, committeeID)

	trace := &model.DonorTrace{
		ComputedAt:    e.clock.Now(),
		CandidateName: group.CandidateName,
		CommitteeIDs:  group.CommitteeIDs,
	}
	if trace.CandidateName == "" {
		if name, _, _, ok := describeGroup(committees, group.CommitteeIDs); ok {
			trace.CandidateName = name
		}
	}

	ieTxns, err := e.store.GetIETransactionsByTargets(ctx, group.CommitteeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load IE transactions: %w", err)
	}
	if len(ieTxns) == 0 {
		return trace, nil
	}

	// Per-spender IE totals and the direction of their spending.
	type spender struct {
		spent   decimal.Decimal
		support model.TriBool
		mixed   bool
	}
	spenders := make(map[int64]*spender)
	for _, txn := range ieTxns {
		s, ok := spenders[txn.CommitteeID]
		if !ok {
			s = &spender{spent: decimal.Zero, support: txn.Benefit}
			spenders[txn.CommitteeID] = s
		}
		s.spent = s.spent.Add(txn.Amount.Abs())
		if txn.Benefit != s.support {
			s.mixed = true
		}
	}

	spenderIDs := make([]int64, 0, len(spenders))
	for id := range spenders {
		spenderIDs = append(spenderIDs, id)
	}
	sort.Slice(spenderIDs, func(i, j int) bool { return spenderIDs[i] < spenderIDs[j] })

	income, err := e.store.GetIncomeByCommittees(ctx, spenderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load donor transactions: %w", err)
	}

	// donor entity → spender committee → amount given
	type linkKey struct {
		donor   int64
		spender int64
	}
	given := make(map[linkKey]decimal.Decimal)
	for _, txn := range income {
		key := linkKey{donor: txn.EntityID, spender: txn.CommitteeID}
		prev, ok := given[key]
		if !ok {
			prev = decimal.Zero
		}
		given[key] = prev.Add(txn.Amount.Abs())
	}

	for key, amount := range given {
		s := spenders[key.spender]
		link := model.DonorLink{
			DonorID:   key.donor,
			SpenderID: key.spender,
			Given:     amount,
			Spent:     s.spent,
		}
		if !s.mixed {
			link.SpenderSupport = s.support
		}

		donor, err := e.store.GetEntity(ctx, key.donor)
		switch {
		case err == nil:
			link.DonorName = donor.DisplayName()
		case errors.Is(err, common.ErrNotFound):
			// keep the id-only link; the trace stays usable
		default:
			return nil, fmt.Errorf("failed to look up donor %d: %w", key.donor, err)
		}

		spenderEntity, err := e.spenderName(ctx, committees, key.spender)
		if err != nil {
			return nil, err
		}
		link.CommitteeName = spenderEntity

		trace.Links = append(trace.Links, link)
	}

	sort.Slice(trace.Links, func(i, j int) bool {
		a, b := trace.Links[i], trace.Links[j]
		if !a.Given.Equal(b.Given) {
			return a.Given.GreaterThan(b.Given)
		}
		if a.DonorID != b.DonorID {
			return a.DonorID < b.DonorID
		}
		return a.SpenderID < b.SpenderID
	})
	return trace, nil
}

func (e *Engine) spenderName(ctx context.Context, committees []model.Committee, committeeID int64) (string, error) {
	for _, c := range committees {
		if c.ID != committeeID {
			continue
		}
		entity, err := e.store.GetEntity(ctx, c.EntityID)
		if errors.Is(err, common.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to look up committee entity %d: %w", c.EntityID, err)
		}
		return entity.DisplayName(), nil
	}
	return "", nil
}
