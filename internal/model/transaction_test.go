package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_NaturalKey(t *testing.T) {
	base := Transaction{
		ID:          1,
		CommitteeID: 10,
		EntityID:    5,
		Amount:      decimal.NewFromInt(100),
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:        TxnContribution,
	}

	tests := []struct {
		mutate   func(*Transaction)
		name     string
		wantSame bool
	}{
		{
			name:     "identical fields share a key",
			mutate:   func(txn *Transaction) { txn.ID = 2 },
			wantSame: true,
		},
		{
			name:     "time of day is ignored",
			mutate:   func(txn *Transaction) { txn.Date = txn.Date.Add(5 * time.Hour) },
			wantSame: true,
		},
		{
			name:     "amount scale is normalized",
			mutate:   func(txn *Transaction) { txn.Amount = decimal.RequireFromString("100.00") },
			wantSame: true,
		},
		{
			name:     "different amount changes the key",
			mutate:   func(txn *Transaction) { txn.Amount = decimal.NewFromInt(101) },
			wantSame: false,
		},
		{
			name:     "different committee changes the key",
			mutate:   func(txn *Transaction) { txn.CommitteeID = 11 },
			wantSame: false,
		},
		{
			name:     "different date changes the key",
			mutate:   func(txn *Transaction) { txn.Date = txn.Date.AddDate(0, 0, 1) },
			wantSame: false,
		},
		{
			name:     "different type changes the key",
			mutate:   func(txn *Transaction) { txn.Type = TxnExpenditure },
			wantSame: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			got := other.NaturalKey() == base.NaturalKey()
			if got != tt.wantSame {
				t.Errorf("NaturalKey equality = %v, want %v", got, tt.wantSame)
			}
		})
	}
}

func TestTransaction_IsIE(t *testing.T) {
	target := int64(42)
	tests := []struct {
		target  *int64
		name    string
		benefit TriBool
		want    bool
	}{
		{name: "target with support flag", target: &target, benefit: True, want: true},
		{name: "target with oppose flag", target: &target, benefit: False, want: true},
		{name: "target with unknown flag", target: &target, benefit: Unknown, want: false},
		{name: "no target", target: nil, benefit: True, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := Transaction{TargetCommitteeID: tt.target, Benefit: tt.benefit}
			if got := txn.IsIE(); got != tt.want {
				t.Errorf("IsIE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawRow_Hash(t *testing.T) {
	a := RawRow{Schema: "sos-export", Fields: map[string]string{"amount": "100", "date": "2024-01-01"}}
	b := RawRow{Schema: "sos-export", Fields: map[string]string{"date": "2024-01-01", "amount": "100"}}
	if a.Hash() != b.Hash() {
		t.Error("field insertion order must not change the row hash")
	}

	c := RawRow{Schema: "portal-csv", Fields: a.Fields}
	if a.Hash() == c.Hash() {
		t.Error("schema tag must participate in the row hash")
	}
}

func TestTriBool_NullBool(t *testing.T) {
	if Unknown.NullBool().Valid {
		t.Error("unknown must map to NULL")
	}
	if got := TriBoolFromNull(True.NullBool()); got != True {
		t.Errorf("round trip True = %v", got)
	}
	if got := TriBoolFromNull(False.NullBool()); got != False {
		t.Errorf("round trip False = %v", got)
	}
}
