// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store reads the provider and model catalogue from its backing
// source (SQLite, PostgreSQL or a catalogue file) and writes catalogue edits
// back when the source supports it.
package store

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/modeldeck/internal/config"
	"github.com/traylinx/modeldeck/internal/registry"
)

// ErrReadOnly is returned by sources that cannot persist catalogue edits.
var ErrReadOnly = errors.New("store: source is read-only")

// Source supplies the initial provider and model rows.
type Source interface {
	LoadProviders(ctx context.Context) ([]registry.Provider, error)
	LoadModels(ctx context.Context) ([]registry.ModelRow, error)
	Close() error
}

// Writer persists catalogue edits made through the registry.
type Writer interface {
	SaveProvider(ctx context.Context, p registry.Provider) error
	DeleteProvider(ctx context.Context, providerID string) error
	SaveModel(ctx context.Context, m registry.Model) error
	DeleteModel(ctx context.Context, modelID string) error
	// RenameModel atomically replaces the model stored under oldID with m.
	RenameModel(ctx context.Context, oldID string, m registry.Model) error
}

// Open returns the Source selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Source, error) {
	switch cfg.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		return OpenSQL(ctx, SQLConfig{Driver: cfg.Driver, DSN: cfg.DSN, Schema: cfg.Schema})
	case config.DriverFile:
		return NewFileStore(cfg.CatalogPath), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Load reads every row from src and initialises reg with them.
// The registry is left untouched when either read fails.
func Load(ctx context.Context, src Source, reg *registry.Store) error {
	providers, rows, err := read(ctx, src)
	if err != nil {
		return err
	}
	Apply(reg, providers, rows)
	log.Infof("Loaded catalogue: %d providers, %d models", len(providers), len(rows))
	return nil
}

// catalogLoader is implemented by sources that can read providers and models in one pass.
type catalogLoader interface {
	LoadCatalog(ctx context.Context) (Catalog, error)
}

func read(ctx context.Context, src Source) ([]registry.Provider, []registry.ModelRow, error) {
	if cl, ok := src.(catalogLoader); ok {
		catalog, err := cl.LoadCatalog(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("store: load catalogue: %w", err)
		}
		return catalog.Providers, catalog.Models, nil
	}
	providers, err := src.LoadProviders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("store: load providers: %w", err)
	}
	rows, err := src.LoadModels(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("store: load models: %w", err)
	}
	return providers, rows, nil
}

// Apply replaces the registry catalogue with providers and rows in a single update.
func Apply(reg *registry.Store, providers []registry.Provider, rows []registry.ModelRow) {
	reg.Update(func(st registry.State) registry.State {
		st = registry.InitProviders(st, providers)
		st = registry.InitModels(st, rows)
		st = registry.InitModelRealIDs(st, rows)
		return registry.SetPending(st, false)
	})
}
