package model

import "database/sql"

// TriBool is a three-valued boolean. Source exports routinely leave
// boolean columns blank or use sentinel values; those must stay Unknown
// rather than collapsing to false.
type TriBool int

const (
	Unknown TriBool = iota
	True
	False
)

func (b TriBool) String() string {
	switch b {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Known reports whether the value carries information.
func (b TriBool) Known() bool {
	return b == True || b == False
}

// NullBool converts to the database representation: NULL for Unknown.
func (b TriBool) NullBool() sql.NullBool {
	if !b.Known() {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: b == True, Valid: true}
}

// TriBoolFromNull converts back from the database representation.
func TriBoolFromNull(nb sql.NullBool) TriBool {
	if !nb.Valid {
		return Unknown
	}
	if nb.Bool {
		return True
	}
	return False
}
