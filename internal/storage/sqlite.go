// Package storage provides the SQLite persistence layer for the ledger.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/calwatch/warchest/internal/service"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	dbPath     string
	mergeLocks map[int64]struct{}
	mergeMu    sync.Mutex

	// mergeHook, when set, runs after each reassignment step inside an
	// entity merge. Tests use it to simulate mid-merge failures.
	mergeHook func(step int) error
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:         db,
		dbPath:     dbPath,
		mergeLocks: make(map[int64]struct{}),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// lockEntities acquires the merge lock over an entity id set. A second
// merge whose set overlaps a running one fails immediately rather than
// queueing, so an operator sees the conflict.
func (s *SQLiteStorage) lockEntities(ids []int64) (func(), error) {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	for _, id := range sorted {
		if _, held := s.mergeLocks[id]; held {
			return nil, fmt.Errorf("entity %d: %w", id, ErrMergeLocked)
		}
	}
	for _, id := range sorted {
		s.mergeLocks[id] = struct{}{}
	}

	release := func() {
		s.mergeMu.Lock()
		defer s.mergeMu.Unlock()
		for _, id := range sorted {
			delete(s.mergeLocks, id)
		}
	}
	return release, nil
}

// execTx runs fn inside a database transaction, rolling back on error.
func (s *SQLiteStorage) execTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
