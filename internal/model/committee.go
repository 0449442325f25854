package model

import "time"

// Committee is a financial reporting unit tied to exactly one Entity.
// Committees are immutable once created except for classification backfill
// (office/cycle) performed by the identity resolver.
type Committee struct {
	FormedDate     *time.Time
	CandidateFirst string
	CandidateLast  string
	Office         string
	Party          string
	ID             int64
	EntityID       int64
	Cycle          int
	Incumbent      TriBool
	Sponsor        bool
}

// IsCandidate reports whether this committee is registered to a candidate.
func (c *Committee) IsCandidate() bool {
	return c.CandidateLast != ""
}

// IsPlaceholder reports whether this committee was synthesized by reference
// repair. Placeholders live in a reserved negative id range disjoint from
// normally-issued ids.
func (c *Committee) IsPlaceholder() bool {
	return c.ID < 0
}
