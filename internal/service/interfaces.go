// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/calwatch/warchest/internal/model"
)

// TransactionFilter defines filtering options for ledger queries.
type TransactionFilter struct {
	CommitteeID    *int64
	TargetID       *int64
	Type           *model.TxnType
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Entity operations
	CreateEntity(ctx context.Context, entity *model.Entity) (int64, error)
	GetEntity(ctx context.Context, id int64) (*model.Entity, error)
	ListEntityIDs(ctx context.Context) (map[int64]model.EntityKind, error)

	// Committee operations
	CreateCommittee(ctx context.Context, committee *model.Committee) (int64, error)
	GetCommittee(ctx context.Context, id int64) (*model.Committee, error)
	ListCommittees(ctx context.Context) ([]model.Committee, error)
	GetPlaceholderByEntity(ctx context.Context, entityID int64) (*model.Committee, error)
	AllocatePlaceholderID(ctx context.Context) (int64, error)
	UpdateCommitteeClassification(ctx context.Context, id int64, field, value string) error

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (created, skipped int, err error)
	UpsertTransactions(ctx context.Context, transactions []model.Transaction) (created, updated int, err error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetIETransactionsByTargets(ctx context.Context, targetIDs []int64) ([]model.Transaction, error)
	GetIncomeByCommittees(ctx context.Context, committeeIDs []int64) ([]model.Transaction, error)
	DuplicateGroups(ctx context.Context, limit int) ([][]model.Transaction, error)
	RemoveDuplicates(ctx context.Context, keepID int64, removeIDs []int64) error
	SoftDeleteTransactions(ctx context.Context, ids []int64) error
	DanglingTargets(ctx context.Context) (map[int64][]int64, error)
	SetTransactionTargets(ctx context.Context, ids []int64, targetID int64) error
	NullTransactionTargets(ctx context.Context, ids []int64) error
	MergeEntities(ctx context.Context, canonical int64, duplicates []int64) (int, error)

	// Rejection audit
	RecordRejection(ctx context.Context, rejection *model.Rejection) error
	GetRejectionsByRun(ctx context.Context, runID string) ([]model.Rejection, error)
	SeenRowHashes(ctx context.Context) (map[string]struct{}, error)

	// Import cursors
	SaveCursor(ctx context.Context, runID, source string, offset int) error
	GetCursor(ctx context.Context, runID, source string) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Clock abstracts time for testable cache expiry.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }
