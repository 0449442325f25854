package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandidateAggregate is the per-candidate independent-expenditure rollup,
// computed across the candidate's whole identity group so spending against
// two committee records for the same person is combined. Always
// re-derivable from the ledger, never the source of truth.
type CandidateAggregate struct {
	ComputedAt    time.Time
	CandidateName string
	Office        string
	Support       decimal.Decimal
	Oppose        decimal.Decimal
	CommitteeIDs  []int64
	Cycle         int
	Incomplete    bool // some underlying rows could not be read; totals are partial
}

// Total returns combined absolute IE spending, support plus oppose, not netted.
func (a *CandidateAggregate) Total() decimal.Decimal {
	return a.Support.Abs().Add(a.Oppose.Abs())
}

// RaceAggregate groups candidate aggregates by (office, cycle), ordered by
// total absolute IE spending descending, candidate id ascending on ties.
type RaceAggregate struct {
	ComputedAt time.Time
	Office     string
	Candidates []CandidateAggregate
	Cycle      int
	Incomplete bool
}

// DonorLink is one hop of a donor trace: an entity that gave money to a
// committee which in turn made independent expenditures about the candidate.
type DonorLink struct {
	DonorName      string
	CommitteeName  string
	Given          decimal.Decimal // income-type transactions from donor to committee
	Spent          decimal.Decimal // absolute IE spending by committee about the candidate
	DonorID        int64
	SpenderID      int64
	SpenderSupport TriBool // True if the committee's IE spending supports the candidate
}

// DonorTrace is the two-hop attribution donor → IE committee → candidate.
type DonorTrace struct {
	ComputedAt    time.Time
	CandidateName string
	Links         []DonorLink
	CommitteeIDs  []int64
}

// ThresholdEntry classifies one candidate against a dollar threshold.
// Over/under is decided on combined absolute spending, support plus oppose,
// never netted.
type ThresholdEntry struct {
	CandidateName string
	Office        string
	Support       decimal.Decimal
	Oppose        decimal.Decimal
	Total         decimal.Decimal
	Multiple      decimal.Decimal // total / threshold, one decimal place
	Cycle         int
	Over          bool
}

// ThresholdReport compares every candidate's combined IE spending against a
// configured grassroots threshold.
type ThresholdReport struct {
	ComputedAt time.Time
	Threshold  decimal.Decimal
	Entries    []ThresholdEntry
}
