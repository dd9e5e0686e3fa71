// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver ("sqlite3")
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/modeldeck/internal/config"
	"github.com/traylinx/modeldeck/internal/registry"
)

const (
	providersTable = "llm_providers"
	modelsTable    = "llm_models"
	pageSize       = 100
)

// SQLConfig configures a database-backed catalogue.
type SQLConfig struct {
	// Driver is config.DriverSQLite or config.DriverPostgres.
	Driver string
	// DSN is the sqlite path or postgres connection URL.
	DSN string
	// Schema optionally qualifies postgres table names.
	Schema string
}

type dialect struct {
	driverName string
	// numbered placeholders ($1, $2) instead of "?"
	numbered bool
}

func (d dialect) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		if d.numbered {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

var (
	sqliteDialect   = dialect{driverName: "sqlite3"}
	postgresDialect = dialect{driverName: "pgx", numbered: true}
)

// SQLStore reads and writes the catalogue in a SQL database.
type SQLStore struct {
	db      *sql.DB
	cfg     SQLConfig
	dialect dialect
}

// OpenSQL connects to the database described by cfg and creates the catalogue
// tables when they do not exist yet.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	var d dialect
	switch cfg.Driver {
	case config.DriverSQLite:
		d = sqliteDialect
	case config.DriverPostgres:
		d = postgresDialect
	default:
		return nil, fmt.Errorf("store: unsupported sql driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}

	db, err := sql.Open(d.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	if d == sqliteDialect {
		// SQLite works best with a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	s := &SQLStore{db: db, cfg: cfg, dialect: d}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", cfg.Driver, err)
	}
	if err = s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("Catalogue store ready (driver: %s)", cfg.Driver)
	return s, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) fullTableName(name string) string {
	if strings.TrimSpace(s.cfg.Schema) == "" || !s.dialect.numbered {
		return name
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (s *SQLStore) schemaStatements() []string {
	var stmts []string
	if s.dialect.numbered && strings.TrimSpace(s.cfg.Schema) != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(s.cfg.Schema)))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			provider_name TEXT NOT NULL,
			provider_logo TEXT,
			status BOOLEAN NOT NULL DEFAULT TRUE,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`, s.fullTableName(providersTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			api_url TEXT,
			provider_id TEXT NOT NULL,
			max_tokens INTEGER,
			support_vision BOOLEAN,
			support_tool BOOLEAN,
			selected BOOLEAN NOT NULL DEFAULT FALSE,
			type TEXT,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`, s.fullTableName(modelsTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_llm_models_provider ON %s (provider_id)", s.fullTableName(modelsTable)),
	)
	return stmts
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) providersQuery() string {
	return fmt.Sprintf("SELECT id, provider_name, COALESCE(provider_logo, ''), status FROM %s ORDER BY sort_order, id",
		s.fullTableName(providersTable))
}

// modelsQuery pages through models in (sort_order, id) order. When after is
// true the query continues past the last row of the previous page.
func (s *SQLStore) modelsQuery(after bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT m.id, m.name, m.display_name, COALESCE(m.api_url, ''), m.provider_id, "+
		"COALESCE(p.provider_name, m.provider_id), COALESCE(p.provider_logo, ''), COALESCE(m.max_tokens, 0), "+
		"COALESCE(m.support_vision, FALSE), COALESCE(m.support_tool, FALSE), m.selected, COALESCE(m.type, ''), m.sort_order "+
		"FROM %s m LEFT JOIN %s p ON p.id = m.provider_id",
		s.fullTableName(modelsTable), s.fullTableName(providersTable))
	if after {
		ph := s.dialect.placeholders(2)
		fmt.Fprintf(&b, " WHERE (m.sort_order, m.id) > (%s, %s)", ph[0], ph[1])
	}
	fmt.Fprintf(&b, " ORDER BY m.sort_order, m.id LIMIT %d", pageSize)
	return b.String()
}

// LoadProviders returns every provider in display order.
func (s *SQLStore) LoadProviders(ctx context.Context) ([]registry.Provider, error) {
	rows, err := s.db.QueryContext(ctx, s.providersQuery())
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []registry.Provider
	for rows.Next() {
		var p registry.Provider
		if err = rows.Scan(&p.ID, &p.ProviderName, &p.ProviderLogo, &p.Status); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return providers, nil
}

// LoadModels returns every model row in display order, reading in pages.
func (s *SQLStore) LoadModels(ctx context.Context) ([]registry.ModelRow, error) {
	var (
		all       []registry.ModelRow
		lastOrder int
		lastID    string
	)
	for page := 0; ; page++ {
		var (
			rows *sql.Rows
			err  error
		)
		if page == 0 {
			rows, err = s.db.QueryContext(ctx, s.modelsQuery(false))
		} else {
			rows, err = s.db.QueryContext(ctx, s.modelsQuery(true), lastOrder, lastID)
		}
		if err != nil {
			return nil, fmt.Errorf("query models: %w", err)
		}

		count := 0
		for rows.Next() {
			var row registry.ModelRow
			if err = rows.Scan(&row.ID, &row.Name, &row.DisplayName, &row.APIURL, &row.ProviderID,
				&row.ProviderName, &row.ProviderLogo, &row.MaxTokens, &row.SupportVision, &row.SupportTool,
				&row.Selected, &row.Type, &lastOrder); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan model: %w", err)
			}
			lastID = row.ID
			all = append(all, row)
			count++
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate models: %w", err)
		}
		if count < pageSize {
			return all, nil
		}
	}
}

// SaveProvider inserts or updates p.
func (s *SQLStore) SaveProvider(ctx context.Context, p registry.Provider) error {
	ph := s.dialect.placeholders(4)
	query := fmt.Sprintf("INSERT INTO %s (id, provider_name, provider_logo, status) VALUES (%s) "+
		"ON CONFLICT (id) DO UPDATE SET provider_name = excluded.provider_name, "+
		"provider_logo = excluded.provider_logo, status = excluded.status",
		s.fullTableName(providersTable), strings.Join(ph, ", "))
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.ProviderName, nullString(p.ProviderLogo), p.Status); err != nil {
		return fmt.Errorf("save provider %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProvider removes a provider row. Models that reference it are kept and
// resolve to a placeholder provider.
func (s *SQLStore) DeleteProvider(ctx context.Context, providerID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.fullTableName(providersTable), s.dialect.placeholders(1)[0])
	if _, err := s.db.ExecContext(ctx, query, providerID); err != nil {
		return fmt.Errorf("delete provider %s: %w", providerID, err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveModel inserts or updates m, keyed by its public id. New rows use the
// public id as their database id.
func (s *SQLStore) SaveModel(ctx context.Context, m registry.Model) error {
	return s.saveModel(ctx, s.db, m)
}

func (s *SQLStore) saveModel(ctx context.Context, db execer, m registry.Model) error {
	ph := s.dialect.placeholders(9)
	query := fmt.Sprintf("INSERT INTO %s (id, name, display_name, provider_id, max_tokens, support_vision, support_tool, selected, type) "+
		"VALUES (%s) ON CONFLICT (name) DO UPDATE SET display_name = excluded.display_name, "+
		"provider_id = excluded.provider_id, max_tokens = excluded.max_tokens, support_vision = excluded.support_vision, "+
		"support_tool = excluded.support_tool, selected = excluded.selected, type = excluded.type",
		s.fullTableName(modelsTable), strings.Join(ph, ", "))
	_, err := db.ExecContext(ctx, query, m.ID, m.ID, m.DisplayName, m.Provider.ID,
		nullInt(m.MaxTokens), m.SupportVision, m.SupportTool, m.Selected, nullString(m.Type))
	if err != nil {
		return fmt.Errorf("save model %s: %w", m.ID, err)
	}
	return nil
}

// DeleteModel removes the model with the given public id.
func (s *SQLStore) DeleteModel(ctx context.Context, modelID string) error {
	return s.deleteModel(ctx, s.db, modelID)
}

func (s *SQLStore) deleteModel(ctx context.Context, db execer, modelID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = %s", s.fullTableName(modelsTable), s.dialect.placeholders(1)[0])
	if _, err := db.ExecContext(ctx, query, modelID); err != nil {
		return fmt.Errorf("delete model %s: %w", modelID, err)
	}
	return nil
}

// RenameModel replaces the row for oldID with m in one transaction, so a
// failed write leaves the old row in place.
func (s *SQLStore) RenameModel(ctx context.Context, oldID string, m registry.Model) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rename model %s: begin: %w", oldID, err)
	}
	defer func() {
		if err != nil {
			if errRollback := tx.Rollback(); errRollback != nil {
				log.Warnf("rollback of model rename %s failed: %v", oldID, errRollback)
			}
		}
	}()

	if err = s.deleteModel(ctx, tx, oldID); err != nil {
		return err
	}
	if err = s.saveModel(ctx, tx, m); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("rename model %s: commit: %w", oldID, err)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
