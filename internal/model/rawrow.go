package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// SourceSchema tags a raw row with the export format it came from. Each
// schema has exactly one registered normalization function; there is no
// runtime field probing.
type SourceSchema string

// RawRow is one unparsed row from a source export: named fields plus the
// schema that declares their meaning.
type RawRow struct {
	Fields map[string]string
	Schema SourceSchema
}

// Field returns the trimmed value for a field name, empty if absent.
func (r RawRow) Field(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Hash fingerprints the original row so rejections are auditable and
// re-runs can skip rows already processed.
func (r RawRow) Hash() string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(r.Schema))
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(r.Fields[k])
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// RejectReason categorizes why a row was rejected or flagged during import.
type RejectReason string

// Reject reason codes recorded with each rejection.
const (
	ReasonUnparseableField     RejectReason = "unparseable_field"
	ReasonMissingRequiredFK    RejectReason = "missing_required_fk"
	ReasonUnresolvedOptionalFK RejectReason = "unresolved_optional_fk"
	ReasonDuplicateNaturalKey  RejectReason = "duplicate_natural_key"
	ReasonUnknownSchema        RejectReason = "unknown_schema"
)

// Rejection is the audit record for a row that could not be fully accepted.
type Rejection struct {
	RunID   string
	RowHash string
	Reason  RejectReason
	Detail  string
}
