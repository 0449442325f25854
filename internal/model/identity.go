package model

// IdentityGroup associates committee records believed to represent one
// real-world candidate within a single election cycle. Groups are derived
// at resolution time, never persisted as new ledger rows.
type IdentityGroup struct {
	CandidateName string
	Office        string
	CommitteeIDs  []int64
	Cycle         int
}

// Contains reports whether the group includes a committee id.
func (g *IdentityGroup) Contains(id int64) bool {
	for _, cid := range g.CommitteeIDs {
		if cid == id {
			return true
		}
	}
	return false
}

// Correction is a proposed classification backfill for one committee.
// Applying corrections is a separate, audited step; resolution itself has
// no side effects.
type Correction struct {
	Field           string // "office" or "cycle"
	Value           string
	CommitteeID     int64
	SourceCommittee int64 // sibling the value was copied from
}

// Ambiguity records a backfill that was not applied because more than one
// equally-plausible sibling value exists.
type Ambiguity struct {
	Field       string
	Values      []string
	CommitteeID int64
}

// CycleFlag marks a committee whose assigned cycle disagrees with the one
// inferred from its formation date. Flags are for manual review; the
// assigned cycle is never silently overwritten.
type CycleFlag struct {
	CommitteeID   int64
	AssignedCycle int
	InferredCycle int
}

// Resolution is the full output of one identity-resolution pass.
type Resolution struct {
	Groups      []IdentityGroup
	Corrections []Correction
	Ambiguities []Ambiguity
	CycleFlags  []CycleFlag
}
