package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calwatch/warchest/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidEntity      = errors.New("invalid entity")
	ErrInvalidCommittee   = errors.New("invalid committee")
	ErrMergeLocked        = errors.New("entity set locked by a running merge")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.CommitteeID == 0 {
		return fmt.Errorf("%w: missing committee", ErrInvalidTransaction)
	}
	if txn.EntityID == 0 {
		return fmt.Errorf("%w: missing entity", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if !model.KnownTxnType(txn.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	return nil
}

// validateEntity validates an entity.
func validateEntity(entity *model.Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity", ErrNilParameter)
	}
	if strings.TrimSpace(entity.LastName) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEntity)
	}
	if entity.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEntity)
	}
	return nil
}

// validateCommittee validates a committee.
func validateCommittee(committee *model.Committee) error {
	if committee == nil {
		return fmt.Errorf("%w: committee", ErrNilParameter)
	}
	if committee.EntityID == 0 {
		return fmt.Errorf("%w: missing entity", ErrInvalidCommittee)
	}
	return nil
}
