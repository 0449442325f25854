package identity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/calwatch/warchest/internal/model"
)

// Resolver derives identity groupings and proposed corrections from the
// committee roster. Resolution is pure: it reads the roster it is handed
// and produces a report; applying corrections is a separate audited step.
type Resolver struct {
	nicknames Nicknames
	calendar  Calendar
}

// NewResolver creates a resolver with the configured nickname table and
// election calendar.
func NewResolver(nicknames Nicknames, calendar Calendar) *Resolver {
	return &Resolver{nicknames: nicknames, calendar: calendar}
}

// Resolve groups candidate committees by real-world candidate, proposes
// office/cycle backfill from classified siblings, and flags committees
// whose assigned cycle disagrees with the one inferred from their
// formation date.
func (r *Resolver) Resolve(committees []model.Committee) *model.Resolution {
	resolution := &model.Resolution{}

	candidates := make([]model.Committee, 0, len(committees))
	for _, c := range committees {
		if c.IsCandidate() && !c.IsPlaceholder() {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	groups := r.buildGroups(candidates)
	resolution.Groups = groups

	r.proposeOfficeBackfill(groups, candidates, resolution)
	r.proposeCycleBackfill(candidates, resolution)

	for _, c := range candidates {
		if c.FormedDate == nil || c.Cycle == 0 {
			continue
		}
		inferred := r.calendar.InferCycle(*c.FormedDate)
		if inferred != c.Cycle {
			resolution.CycleFlags = append(resolution.CycleFlags, model.CycleFlag{
				CommitteeID:   c.ID,
				AssignedCycle: c.Cycle,
				InferredCycle: inferred,
			})
		}
	}

	return resolution
}

// buildGroups assigns each committee to the first group whose
// representative (the lowest-id member) it matches. Matching is always
// against the representative, never chained through intermediate members.
func (r *Resolver) buildGroups(candidates []model.Committee) []model.IdentityGroup {
	type group struct {
		representative model.Committee
		members        []model.Committee
	}

	var groups []*group
	for _, c := range candidates {
		if c.Cycle == 0 {
			// Without a cycle the same-cycle rule cannot apply; the
			// committee stands alone until cycle backfill lands.
			groups = append(groups, &group{representative: c, members: []model.Committee{c}})
			continue
		}

		placed := false
		for _, g := range groups {
			if SameCandidate(nameOf(c), nameOf(g.representative), r.nicknames) {
				g.members = append(g.members, c)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{representative: c, members: []model.Committee{c}})
		}
	}

	result := make([]model.IdentityGroup, 0, len(groups))
	for _, g := range groups {
		ids := make([]int64, 0, len(g.members))
		office := ""
		for _, m := range g.members {
			ids = append(ids, m.ID)
			if office == "" {
				office = m.Office
			}
		}
		result = append(result, model.IdentityGroup{
			CandidateName: displayName(g.representative),
			Office:        office,
			CommitteeIDs:  ids,
			Cycle:         g.representative.Cycle,
		})
	}
	return result
}

// GroupFor returns the identity group containing a committee id, or a
// singleton group when the committee is unknown to the resolution.
func GroupFor(resolution *model.Resolution, committeeID int64) model.IdentityGroup {
	for _, g := range resolution.Groups {
		if g.Contains(committeeID) {
			return g
		}
	}
	return model.IdentityGroup{CommitteeIDs: []int64{committeeID}}
}

func (r *Resolver) proposeOfficeBackfill(groups []model.IdentityGroup, candidates []model.Committee, resolution *model.Resolution) {
	byID := make(map[int64]model.Committee, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	for _, g := range groups {
		for _, id := range g.CommitteeIDs {
			c := byID[id]
			if c.Office != "" {
				continue
			}

			values := map[string]int64{}
			for _, sibID := range g.CommitteeIDs {
				sib := byID[sibID]
				if sibID != id && sib.Office != "" {
					if _, seen := values[sib.Office]; !seen {
						values[sib.Office] = sibID
					}
				}
			}

			switch len(values) {
			case 0:
				// no classified sibling; leave unset rather than guess
			case 1:
				for office, source := range values {
					resolution.Corrections = append(resolution.Corrections, model.Correction{
						CommitteeID:     id,
						Field:           "office",
						Value:           office,
						SourceCommittee: source,
					})
				}
			default:
				resolution.Ambiguities = append(resolution.Ambiguities, model.Ambiguity{
					CommitteeID: id,
					Field:       "office",
					Values:      sortedKeys(values),
				})
			}
		}
	}
}

// proposeCycleBackfill fills a missing cycle from name-matched committees
// that carry one. Cycle matching cannot use the same-cycle grouping rule
// (the cycle is the thing that is missing), so siblings are matched on
// name alone across the roster.
func (r *Resolver) proposeCycleBackfill(candidates []model.Committee, resolution *model.Resolution) {
	for _, c := range candidates {
		if c.Cycle != 0 {
			continue
		}

		values := map[string]int64{}
		for _, sib := range candidates {
			if sib.ID == c.ID || sib.Cycle == 0 {
				continue
			}
			if !strings.EqualFold(strings.TrimSpace(c.CandidateLast), strings.TrimSpace(sib.CandidateLast)) {
				continue
			}
			if !FirstNamesEquivalent(c.CandidateFirst, sib.CandidateFirst, r.nicknames) {
				continue
			}
			key := strconv.Itoa(sib.Cycle)
			if _, seen := values[key]; !seen {
				values[key] = sib.ID
			}
		}

		switch len(values) {
		case 0:
		case 1:
			for cycle, source := range values {
				resolution.Corrections = append(resolution.Corrections, model.Correction{
					CommitteeID:     c.ID,
					Field:           "cycle",
					Value:           cycle,
					SourceCommittee: source,
				})
			}
		default:
			resolution.Ambiguities = append(resolution.Ambiguities, model.Ambiguity{
				CommitteeID: c.ID,
				Field:       "cycle",
				Values:      sortedKeys(values),
			})
		}
	}
}

func nameOf(c model.Committee) CandidateName {
	return CandidateName{First: c.CandidateFirst, Last: c.CandidateLast, Cycle: c.Cycle}
}

func displayName(c model.Committee) string {
	return strings.TrimSpace(c.CandidateFirst + " " + c.CandidateLast)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
