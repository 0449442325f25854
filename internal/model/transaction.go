package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxnType is the category code on a transaction. The code determines
// whether the transaction is income or expense from the owning committee's
// point of view.
type TxnType string

// Transaction type codes.
const (
	TxnContribution TxnType = "contribution"
	TxnLoan         TxnType = "loan"
	TxnRefund       TxnType = "refund"
	TxnExpenditure  TxnType = "expenditure"
	TxnIndependent  TxnType = "independent_expenditure"
)

// Direction indicates which way money moves relative to the owning committee.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIncome
	DirectionExpense
)

var txnDirections = map[TxnType]Direction{
	TxnContribution: DirectionIncome,
	TxnLoan:         DirectionIncome,
	TxnRefund:       DirectionExpense,
	TxnExpenditure:  DirectionExpense,
	TxnIndependent:  DirectionExpense,
}

// DirectionOf returns the money direction for a type code.
func DirectionOf(t TxnType) Direction {
	if d, ok := txnDirections[t]; ok {
		return d
	}
	return DirectionUnknown
}

// KnownTxnType reports whether t is a recognized type code.
func KnownTxnType(t TxnType) bool {
	_, ok := txnDirections[t]
	return ok
}

// Transaction is a single financial event in the ledger.
type Transaction struct {
	Date              time.Time
	TargetCommitteeID *int64 // committee the transaction is about (IE records)
	SupersedesID      *int64 // earlier transaction this one amends
	Type              TxnType
	NaturalKeyHash    string
	SourceHash        string // hash of the raw row this came from
	ImportRunID       string
	Amount            decimal.Decimal
	ID                int64
	CommitteeID       int64 // owning committee
	EntityID          int64 // counterparty
	Benefit           TriBool
	Deleted           bool // soft-delete; excluded from queries and aggregates
}

// IsIE reports whether this is an independent-expenditure record:
// it names a target committee and carries a known benefit flag.
func (t *Transaction) IsIE() bool {
	return t.TargetCommitteeID != nil && t.Benefit.Known()
}

// NaturalKey computes the duplicate-detection fingerprint. Two transactions
// sharing a natural key describe the same real-world event regardless of
// differing surrogate ids.
func (t *Transaction) NaturalKey() string {
	data := fmt.Sprintf("%d:%d:%s:%s:%s",
		t.CommitteeID,
		t.EntityID,
		t.Amount.StringFixed(2),
		t.Date.Format("2006-01-02"),
		t.Type)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
