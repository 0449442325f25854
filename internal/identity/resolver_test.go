package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
)

func testNicknames() Nicknames {
	return Nicknames{
		"robert":  {"bob", "rob"},
		"william": {"bill", "will"},
	}
}

func TestFirstNamesEquivalent(t *testing.T) {
	nicknames := testNicknames()

	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "exact match", a: "Dana", b: "dana", want: true},
		{name: "middle initial substring", a: "Dana M.", b: "Dana", want: true},
		{name: "nickname pair", a: "Bob", b: "Robert", want: true},
		{name: "equivalents of one canonical", a: "Bob", b: "Rob", want: true},
		{name: "unrelated names", a: "Dana", b: "Robert", want: false},
		{name: "no chaining across entries", a: "Bill", b: "Bob", want: false},
		{name: "empty never matches", a: "", b: "Dana", want: false},
		{name: "both empty match", a: "", b: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstNamesEquivalent(tt.a, tt.b, nicknames))
			// equivalence must be symmetric
			assert.Equal(t, tt.want, FirstNamesEquivalent(tt.b, tt.a, nicknames))
		})
	}
}

func TestSameCandidate_RequiresSameCycle(t *testing.T) {
	a := CandidateName{First: "Bob", Last: "Jones", Cycle: 2024}
	b := CandidateName{First: "Robert", Last: "Jones", Cycle: 2022}
	assert.False(t, SameCandidate(a, b, testNicknames()))

	b.Cycle = 2024
	assert.True(t, SameCandidate(a, b, testNicknames()))
}

func candidateCommittee(id int64, first, last, office string, cycle int) model.Committee {
	return model.Committee{
		ID:             id,
		EntityID:       id,
		CandidateFirst: first,
		CandidateLast:  last,
		Office:         office,
		Cycle:          cycle,
	}
}

func TestResolve_GroupsAndBackfill(t *testing.T) {
	// Committee 201 "Bob Jones" has no office; 305 "Robert Jones" carries
	// "State Senate" in the same cycle. Resolution must group them and
	// propose copying the office across.
	committees := []model.Committee{
		candidateCommittee(201, "Bob", "Jones", "", 2024),
		candidateCommittee(305, "Robert", "Jones", "State Senate", 2024),
		candidateCommittee(400, "Dana", "Wells", "Governor", 2024),
	}

	r := NewResolver(testNicknames(), DefaultCalendar())
	resolution := r.Resolve(committees)

	require.Len(t, resolution.Groups, 2)
	jones := GroupFor(resolution, 201)
	assert.True(t, jones.Contains(305))

	require.Len(t, resolution.Corrections, 1)
	c := resolution.Corrections[0]
	assert.Equal(t, int64(201), c.CommitteeID)
	assert.Equal(t, "office", c.Field)
	assert.Equal(t, "State Senate", c.Value)
	assert.Equal(t, int64(305), c.SourceCommittee)
	assert.Empty(t, resolution.Ambiguities)
}

func TestResolve_GroupingIsSymmetric(t *testing.T) {
	committees := []model.Committee{
		candidateCommittee(1, "Bob", "Jones", "", 2024),
		candidateCommittee(2, "Robert", "Jones", "", 2024),
		candidateCommittee(3, "Rob", "Jones", "", 2024),
		candidateCommittee(4, "Dana", "Wells", "", 2024),
		candidateCommittee(5, "Dana M.", "Wells", "", 2024),
	}

	r := NewResolver(testNicknames(), DefaultCalendar())
	resolution := r.Resolve(committees)

	for _, g := range resolution.Groups {
		for _, a := range g.CommitteeIDs {
			for _, b := range g.CommitteeIDs {
				ga := GroupFor(resolution, a)
				gb := GroupFor(resolution, b)
				assert.True(t, ga.Contains(b))
				assert.True(t, gb.Contains(a))
			}
		}
	}
}

func TestResolve_AmbiguousBackfillIsSurfaced(t *testing.T) {
	committees := []model.Committee{
		candidateCommittee(1, "Bob", "Jones", "", 2024),
		candidateCommittee(2, "Robert", "Jones", "State Senate", 2024),
		candidateCommittee(3, "Rob", "Jones", "State House", 2024),
	}

	r := NewResolver(testNicknames(), DefaultCalendar())
	resolution := r.Resolve(committees)

	assert.Empty(t, resolution.Corrections, "no automatic backfill under ambiguity")
	require.Len(t, resolution.Ambiguities, 1)
	assert.Equal(t, int64(1), resolution.Ambiguities[0].CommitteeID)
	assert.ElementsMatch(t, []string{"State Senate", "State House"}, resolution.Ambiguities[0].Values)
}

func TestResolve_CycleBackfillByName(t *testing.T) {
	committees := []model.Committee{
		candidateCommittee(1, "Dana", "Wells", "Governor", 0),
		candidateCommittee(2, "Dana", "Wells", "Governor", 2024),
	}

	r := NewResolver(testNicknames(), DefaultCalendar())
	resolution := r.Resolve(committees)

	require.Len(t, resolution.Corrections, 1)
	assert.Equal(t, "cycle", resolution.Corrections[0].Field)
	assert.Equal(t, "2024", resolution.Corrections[0].Value)
}

func TestResolve_CycleFlags(t *testing.T) {
	formed := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	mismatched := candidateCommittee(1, "Dana", "Wells", "Governor", 2022)
	mismatched.FormedDate = &formed

	r := NewResolver(testNicknames(), DefaultCalendar())
	resolution := r.Resolve([]model.Committee{mismatched})

	require.Len(t, resolution.CycleFlags, 1)
	flag := resolution.CycleFlags[0]
	assert.Equal(t, 2022, flag.AssignedCycle)
	assert.Equal(t, 2024, flag.InferredCycle)
}

func TestInferCycle(t *testing.T) {
	cal := DefaultCalendar()

	tests := []struct {
		name   string
		formed time.Time
		want   int
	}{
		{
			name:   "odd year rolls to next even",
			formed: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			want:   2024,
		},
		{
			name:   "even year before cutover stays",
			formed: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want:   2024,
		},
		{
			name:   "even year at cutover moves to next cycle",
			formed: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
			want:   2026,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.InferCycle(tt.formed))
		})
	}
}
