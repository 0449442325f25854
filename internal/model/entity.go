// Package model defines the canonical ledger records shared across the application.
package model

import "strings"

// EntityKind classifies an entity for reference-repair decisions.
type EntityKind string

// Entity kinds as they appear in source exports.
const (
	KindPerson       EntityKind = "person"
	KindOrganization EntityKind = "organization"
	KindCandidate    EntityKind = "candidate"
	KindCommittee    EntityKind = "committee"
	KindOther        EntityKind = "other"
)

// Entity is a person or organization that can give or receive money.
// Entities are created during normalization and never deleted; duplicates
// are merged by reassigning their transactions onto a canonical id.
type Entity struct {
	FirstName  string
	LastName   string
	City       string
	State      string
	Occupation string
	Employer   string
	Kind       EntityKind
	ID         int64
}

// DisplayName returns a human-readable name for reports.
func (e *Entity) DisplayName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// CommitteeLike reports whether a dangling committee reference pointing at
// this entity is worth repairing with a placeholder committee.
func (e *Entity) CommitteeLike() bool {
	return e.Kind == KindCandidate || e.Kind == KindCommittee
}
