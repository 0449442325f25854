package main

import (
	"context"
	"fmt"

	"github.com/calwatch/warchest/internal/common"
	"github.com/calwatch/warchest/internal/config"
	"github.com/calwatch/warchest/internal/identity"
	"github.com/calwatch/warchest/internal/storage"
)

// initStorage opens the configured database and brings its schema current.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, common.NewUserError(
			fmt.Sprintf("could not open ledger database at %s", settings.DatabasePath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadSettings resolves configuration for a command run.
func loadSettings() (*config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

func newResolver(settings *config.Settings) *identity.Resolver {
	return identity.NewResolver(settings.Nicknames, settings.Calendar())
}
