// Package normalize turns raw source rows into canonical ledger records.
// Each source schema has exactly one registered row function, dispatched
// through a lookup table; there is no runtime field probing.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/calwatch/warchest/internal/model"
)

// Snapshot is the set of ids known to the ledger at the start of an import
// run. Foreign references are resolved against it, not against live reads,
// so a row's fate does not depend on what a concurrent partition inserted.
type Snapshot struct {
	Committees map[int64]struct{}
	Entities   map[int64]model.EntityKind
}

// SourceConfig carries the per-source parsing rules; formats and the
// two-digit-year pivot differ by jurisdiction.
type SourceConfig struct {
	DateFormats       []string
	TwoDigitYearPivot bool
}

// Config maps each source schema to its parsing rules.
type Config map[model.SourceSchema]SourceConfig

// Record is a normalized row: exactly one of the three candidate kinds is
// set, plus any warnings to record (an accepted row with an unresolvable
// optional reference).
type Record struct {
	Entity      *model.Entity
	Committee   *model.Committee
	Transaction *model.Transaction
	Warnings    []model.Rejection
}

// RejectError is a categorized row rejection. Per-row rejections never
// abort a batch; the importer records them and moves on.
type RejectError struct {
	Reason model.RejectReason
	Field  string
	Detail string
}

func (e *RejectError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Reason, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func reject(reason model.RejectReason, field, format string, args ...any) error {
	return &RejectError{Reason: reason, Field: field, Detail: fmt.Sprintf(format, args...)}
}

type rowFunc func(*Normalizer, model.RawRow) (*Record, error)

// schemaFuncs is the dispatch table: one normalization function per schema.
var schemaFuncs = map[model.SourceSchema]rowFunc{
	SchemaSOSEntities:     (*Normalizer).normalizeSOSEntity,
	SchemaSOSCommittees:   (*Normalizer).normalizeSOSCommittee,
	SchemaSOSTransactions: (*Normalizer).normalizeSOSTransaction,
	SchemaPortalCSV:       (*Normalizer).normalizePortalTransaction,
}

// Normalizer converts raw rows into canonical records against one snapshot.
type Normalizer struct {
	snapshot Snapshot
	config   Config
	now      time.Time
}

// New creates a normalizer over a ledger snapshot.
func New(snapshot Snapshot, config Config) *Normalizer {
	return &Normalizer{snapshot: snapshot, config: config, now: time.Now()}
}

// Normalize dispatches a raw row to its schema's row function. A non-nil
// error is always a *RejectError.
func (n *Normalizer) Normalize(row model.RawRow) (*Record, error) {
	fn, ok := schemaFuncs[row.Schema]
	if !ok {
		return nil, reject(model.ReasonUnknownSchema, "", "no normalizer registered for schema %q", row.Schema)
	}
	return fn(n, row)
}

func (n *Normalizer) sourceConfig(schema model.SourceSchema) SourceConfig {
	if cfg, ok := n.config[schema]; ok {
		return cfg
	}
	return SourceConfig{DateFormats: []string{"2006-01-02"}}
}

func (n *Normalizer) parseRowDate(row model.RawRow, field string) (time.Time, error) {
	cfg := n.sourceConfig(row.Schema)
	t, err := parseDate(row.Field(field), cfg.DateFormats, cfg.TwoDigitYearPivot, n.now)
	if err != nil {
		return time.Time{}, reject(model.ReasonUnparseableField, field, "%v", err)
	}
	return t, nil
}

// parseID parses a numeric identifier field; empty means absent.
func parseID(row model.RawRow, field string) (int64, bool, error) {
	raw := row.Field(field)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, reject(model.ReasonUnparseableField, field, "identifier %q is not numeric", raw)
	}
	return id, true, nil
}

// resolveCommittee resolves a committee reference against the snapshot.
func (n *Normalizer) resolveCommittee(id int64) bool {
	_, ok := n.snapshot.Committees[id]
	return ok
}
