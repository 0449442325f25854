// Package identity groups committee records that represent one real-world
// candidate and proposes classification backfill for them.
package identity

import "strings"

// Nicknames maps a canonical first name to its accepted equivalents
// ("robert" → ["bob", "rob"]). The table is configuration loaded at
// startup; nothing here mutates it.
type Nicknames map[string][]string

// appearTogether reports whether two names occur in the same table entry,
// as canonical or as listed equivalents.
func (n Nicknames) appearTogether(a, b string) bool {
	for canonical, equivalents := range n {
		foundA := canonical == a
		foundB := canonical == b
		for _, e := range equivalents {
			if e == a {
				foundA = true
			}
			if e == b {
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}

// FirstNamesEquivalent reports whether two first names plausibly identify
// the same person: exact match, one a substring of the other (middle
// initials), or a nickname-table pairing. The relation is symmetric but
// deliberately not transitive: a match is decided from the two names alone,
// never chained through a third.
func FirstNamesEquivalent(a, b string, nicknames Nicknames) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return true
	}
	// An absent first name matches nothing; substring would otherwise
	// make it match everyone.
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return nicknames.appearTogether(a, b)
}

// SameCandidate reports whether two candidate committees in the same
// election cycle represent the same person: exact case-insensitive last
// name plus equivalent first names.
func SameCandidate(a, b CandidateName, nicknames Nicknames) bool {
	if a.Cycle != b.Cycle {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(a.Last), strings.TrimSpace(b.Last)) {
		return false
	}
	return FirstNamesEquivalent(a.First, b.First, nicknames)
}

// CandidateName is the comparison token for identity grouping.
type CandidateName struct {
	First string
	Last  string
	Cycle int
}
