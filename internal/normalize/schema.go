package normalize

import (
	"strconv"
	"strings"

	"github.com/calwatch/warchest/internal/model"
)

// Registered source schemas. The two transaction schemas are deliberately
// inconsistent with each other, mirroring the exports they come from.
const (
	SchemaSOSEntities     model.SourceSchema = "sos-entities"
	SchemaSOSCommittees   model.SourceSchema = "sos-committees"
	SchemaSOSTransactions model.SourceSchema = "sos-transactions"
	SchemaPortalCSV       model.SourceSchema = "portal-csv"
)

// Schemas lists every schema with a registered normalizer.
func Schemas() []model.SourceSchema {
	return []model.SourceSchema{
		SchemaSOSEntities,
		SchemaSOSCommittees,
		SchemaSOSTransactions,
		SchemaPortalCSV,
	}
}

var sosEntityKinds = map[string]model.EntityKind{
	"IND": model.KindPerson,
	"ORG": model.KindOrganization,
	"CAO": model.KindCandidate,
	"CTE": model.KindCommittee,
}

func (n *Normalizer) normalizeSOSEntity(row model.RawRow) (*Record, error) {
	id, ok, err := parseID(row, "id")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject(model.ReasonUnparseableField, "id", "entity row has no id")
	}

	last := row.Field("last_name")
	if last == "" {
		last = row.Field("name")
	}
	if last == "" {
		return nil, reject(model.ReasonUnparseableField, "last_name", "entity row has no name")
	}

	kind, ok := sosEntityKinds[strings.ToUpper(row.Field("type"))]
	if !ok {
		kind = model.KindOther
	}

	return &Record{Entity: &model.Entity{
		ID:         id,
		FirstName:  row.Field("first_name"),
		LastName:   last,
		City:       row.Field("city"),
		State:      row.Field("state"),
		Occupation: row.Field("occupation"),
		Employer:   row.Field("employer"),
		Kind:       kind,
	}}, nil
}

func (n *Normalizer) normalizeSOSCommittee(row model.RawRow) (*Record, error) {
	id, ok, err := parseID(row, "id")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject(model.ReasonUnparseableField, "id", "committee row has no id")
	}

	entityID, ok, err := parseID(row, "entity_id")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject(model.ReasonMissingRequiredFK, "entity_id", "committee row has no entity")
	}
	if _, known := n.snapshot.Entities[entityID]; !known {
		return nil, reject(model.ReasonMissingRequiredFK, "entity_id", "entity %d is not in the ledger", entityID)
	}

	committee := &model.Committee{
		ID:             id,
		EntityID:       entityID,
		CandidateFirst: row.Field("cand_first"),
		CandidateLast:  row.Field("cand_last"),
		Office:         row.Field("office"),
		Party:          row.Field("party"),
	}

	if cycle := row.Field("cycle"); cycle != "" {
		c, err := strconv.Atoi(cycle)
		if err != nil {
			return nil, reject(model.ReasonUnparseableField, "cycle", "cycle %q is not numeric", cycle)
		}
		committee.Cycle = c
	}

	incumbent, err := parseTriBool(row.Field("incumbent"))
	if err != nil {
		return nil, reject(model.ReasonUnparseableField, "incumbent", "%v", err)
	}
	committee.Incumbent = incumbent

	if sponsor := row.Field("sponsor"); sponsor != "" {
		b, err := parseTriBool(sponsor)
		if err != nil {
			return nil, reject(model.ReasonUnparseableField, "sponsor", "%v", err)
		}
		committee.Sponsor = b == model.True
	}

	if formed := row.Field("formed"); formed != "" {
		t, err := n.parseRowDate(row, "formed")
		if err != nil {
			return nil, err
		}
		committee.FormedDate = &t
	}

	return &Record{Committee: committee}, nil
}

var sosTxnTypes = map[string]model.TxnType{
	"A": model.TxnContribution,
	"L": model.TxnLoan,
	"R": model.TxnRefund,
	"E": model.TxnExpenditure,
	"I": model.TxnIndependent,
}

func (n *Normalizer) normalizeSOSTransaction(row model.RawRow) (*Record, error) {
	txnType, ok := sosTxnTypes[strings.ToUpper(row.Field("tran_type"))]
	if !ok {
		return nil, reject(model.ReasonUnparseableField, "tran_type",
			"transaction code %q not recognized", row.Field("tran_type"))
	}

	return n.buildTransaction(row, transactionFields{
		id:         "record_id",
		committee:  "filer_id",
		entity:     "contributor_id",
		amount:     "amount",
		date:       "tran_date",
		target:     "target_id",
		benefit:    "sup_opp",
		supersedes: "superseded_id",
	}, txnType)
}

func (n *Normalizer) normalizePortalTransaction(row model.RawRow) (*Record, error) {
	txnType := model.TxnType(strings.ToLower(row.Field("type")))
	if !model.KnownTxnType(txnType) {
		return nil, reject(model.ReasonUnparseableField, "type",
			"transaction type %q not recognized", row.Field("type"))
	}

	return n.buildTransaction(row, transactionFields{
		id:         "id",
		committee:  "committee_id",
		entity:     "entity_id",
		amount:     "amount",
		date:       "date",
		target:     "target_committee_id",
		benefit:    "benefit",
		supersedes: "supersedes_id",
	}, txnType)
}

// transactionFields names the fields a schema uses for each canonical slot.
type transactionFields struct {
	id         string
	committee  string
	entity     string
	amount     string
	date       string
	target     string
	benefit    string
	supersedes string
}

func (n *Normalizer) buildTransaction(row model.RawRow, fields transactionFields, txnType model.TxnType) (*Record, error) {
	committeeID, ok, err := parseID(row, fields.committee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject(model.ReasonMissingRequiredFK, fields.committee, "transaction has no owning committee")
	}
	if !n.resolveCommittee(committeeID) {
		return nil, reject(model.ReasonMissingRequiredFK, fields.committee,
			"committee %d is not in the ledger", committeeID)
	}

	entityID, ok, err := parseID(row, fields.entity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reject(model.ReasonMissingRequiredFK, fields.entity, "transaction has no counterparty")
	}
	if _, known := n.snapshot.Entities[entityID]; !known {
		return nil, reject(model.ReasonMissingRequiredFK, fields.entity,
			"entity %d is not in the ledger", entityID)
	}

	amount, err := parseAmount(row.Field(fields.amount))
	if err != nil {
		return nil, reject(model.ReasonUnparseableField, fields.amount, "%v", err)
	}

	date, err := n.parseRowDate(row, fields.date)
	if err != nil {
		return nil, err
	}

	benefit, err := parseTriBool(row.Field(fields.benefit))
	if err != nil {
		return nil, reject(model.ReasonUnparseableField, fields.benefit, "%v", err)
	}

	txn := &model.Transaction{
		CommitteeID: committeeID,
		EntityID:    entityID,
		Amount:      amount,
		Date:        date,
		Type:        txnType,
		Benefit:     benefit,
		SourceHash:  row.Hash(),
	}

	if id, ok, err := parseID(row, fields.id); err != nil {
		return nil, err
	} else if ok {
		txn.ID = id
	}

	if supersedes, ok, err := parseID(row, fields.supersedes); err != nil {
		return nil, err
	} else if ok {
		txn.SupersedesID = &supersedes
	}

	record := &Record{Transaction: txn}

	// A target committee is an optional reference: an unresolvable id is
	// kept on the row for reference repair to resolve or clear, never a
	// reason to reject.
	if targetID, ok, err := parseID(row, fields.target); err != nil {
		return nil, err
	} else if ok {
		txn.TargetCommitteeID = &targetID
		if !n.resolveCommittee(targetID) {
			record.Warnings = append(record.Warnings, model.Rejection{
				RowHash: row.Hash(),
				Reason:  model.ReasonUnresolvedOptionalFK,
				Detail:  "target committee " + strconv.FormatInt(targetID, 10) + " is not in the ledger",
			})
		}
	}

	txn.NaturalKeyHash = txn.NaturalKey()
	return record, nil
}
