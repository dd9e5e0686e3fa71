// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/modeldeck/internal/config"
	"github.com/traylinx/modeldeck/internal/registry"
)

var modelColumns = []string{
	"id", "name", "display_name", "api_url", "provider_id", "provider_name", "provider_logo",
	"max_tokens", "support_vision", "support_tool", "selected", "type", "sort_order",
}

func newMockStore(t *testing.T, schema string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := &SQLStore{
		db:      db,
		cfg:     SQLConfig{Driver: config.DriverPostgres, Schema: schema},
		dialect: postgresDialect,
	}
	return s, mock
}

func TestSQLStore_Migrate(t *testing.T) {
	s, mock := newMockStore(t, "chat")

	stmts := s.schemaStatements()
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], `CREATE SCHEMA IF NOT EXISTS "chat"`)
	assert.Contains(t, stmts[1], `"chat"."llm_providers"`)
	for _, stmt := range stmts {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LoadProviders(t *testing.T) {
	s, mock := newMockStore(t, "")

	rows := sqlmock.NewRows([]string{"id", "provider_name", "provider_logo", "status"}).
		AddRow("openai", "Open AI", "openai.svg", true).
		AddRow("local", "Local", "", false)
	mock.ExpectQuery(s.providersQuery()).WillReturnRows(rows)

	providers, err := s.LoadProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, registry.Provider{ID: "openai", ProviderName: "Open AI", ProviderLogo: "openai.svg", Status: true}, providers[0])
	assert.False(t, providers[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LoadModels_Pagination(t *testing.T) {
	s, mock := newMockStore(t, "")

	// A full first page forces a second, keyset-continued query.
	page1 := sqlmock.NewRows(modelColumns)
	for i := 1; i <= pageSize; i++ {
		id := fmt.Sprintf("m%03d", i)
		page1.AddRow(id, "name-"+id, "Model "+id, "", "openai", "Open AI", "", 4096, false, true, false, "", 0)
	}
	page2 := sqlmock.NewRows(modelColumns).
		AddRow("m101", "name-m101", "Model m101", "https://api", "anthropic", "Anthropic", "a.svg", 0, true, false, true, "reasoning", 1)

	mock.ExpectQuery(s.modelsQuery(false)).WillReturnRows(page1)
	mock.ExpectQuery(s.modelsQuery(true)).WithArgs(0, "m100").WillReturnRows(page2)

	models, err := s.LoadModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, pageSize+1)

	last := models[pageSize]
	assert.Equal(t, "m101", last.ID)
	assert.Equal(t, "name-m101", last.Name)
	assert.Equal(t, "Anthropic", last.ProviderName)
	assert.True(t, last.SupportVision)
	assert.True(t, last.Selected)
	assert.Equal(t, "reasoning", last.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LoadModels_QueryError(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(s.modelsQuery(false)).WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.LoadModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSQLStore_Writes(t *testing.T) {
	s, mock := newMockStore(t, "")
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO llm_providers (id, provider_name, provider_logo, status) VALUES ($1, $2, $3, $4) "+
		"ON CONFLICT (id) DO UPDATE SET provider_name = excluded.provider_name, "+
		"provider_logo = excluded.provider_logo, status = excluded.status").
		WithArgs("custom", "Custom", nil, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM llm_providers WHERE id = $1").
		WithArgs("custom").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM llm_models WHERE name = $1").
		WithArgs("gpt-4o").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveProvider(ctx, registry.Provider{ID: "custom", ProviderName: "Custom", Status: true}))
	require.NoError(t, s.DeleteProvider(ctx, "custom"))
	require.NoError(t, s.DeleteModel(ctx, "gpt-4o"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_RenameModel(t *testing.T) {
	ctx := context.Background()
	renamed := registry.Model{ID: "o3", DisplayName: "o3", Selected: true, Provider: registry.ProviderRef{ID: "openai"}}
	upsert := "INSERT INTO llm_models (id, name, display_name, provider_id, max_tokens, support_vision, support_tool, selected, type) " +
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (name) DO UPDATE SET display_name = excluded.display_name, " +
		"provider_id = excluded.provider_id, max_tokens = excluded.max_tokens, support_vision = excluded.support_vision, " +
		"support_tool = excluded.support_tool, selected = excluded.selected, type = excluded.type"

	t.Run("commits delete and upsert together", func(t *testing.T) {
		s, mock := newMockStore(t, "")
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM llm_models WHERE name = $1").WithArgs("o3-mini").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(upsert).WithArgs("o3", "o3", "o3", "openai", nil, false, false, true, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.RenameModel(ctx, "o3-mini", renamed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed upsert rolls the delete back", func(t *testing.T) {
		s, mock := newMockStore(t, "")
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM llm_models WHERE name = $1").WithArgs("o3-mini").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(upsert).WillReturnError(fmt.Errorf("constraint violation"))
		mock.ExpectRollback()

		err := s.RenameModel(ctx, "o3-mini", renamed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "constraint violation")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(ctx, SQLConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveProvider(ctx, registry.Provider{ID: "openai", ProviderName: "Open AI", Status: true}))
	require.NoError(t, s.SaveProvider(ctx, registry.Provider{ID: "openai", ProviderName: "OpenAI", ProviderLogo: "o.svg", Status: true}))
	require.NoError(t, s.SaveModel(ctx, registry.Model{ID: "gpt-4o", DisplayName: "GPT-4o", MaxTokens: 128000,
		SupportVision: true, Selected: true, Provider: registry.ProviderRef{ID: "openai"}}))
	require.NoError(t, s.SaveModel(ctx, registry.Model{ID: "orphan", DisplayName: "Orphan",
		Provider: registry.ProviderRef{ID: "gone"}}))

	providers, err := s.LoadProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "OpenAI", providers[0].ProviderName)

	models, err := s.LoadModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o", models[0].Name)
	assert.Equal(t, "OpenAI", models[0].ProviderName)
	assert.Equal(t, 128000, models[0].MaxTokens)
	assert.True(t, models[0].SupportVision)
	assert.Equal(t, "gone", models[1].ProviderName, "missing providers fall back to the id")

	require.NoError(t, s.DeleteModel(ctx, "orphan"))
	models, err = s.LoadModels(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 1)

	require.NoError(t, s.RenameModel(ctx, "gpt-4o", registry.Model{ID: "gpt-4o-2024", DisplayName: "GPT-4o",
		Provider: registry.ProviderRef{ID: "openai"}}))
	models, err = s.LoadModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "gpt-4o-2024", models[0].Name)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)

	_, err = OpenSQL(context.Background(), SQLConfig{Driver: config.DriverPostgres})
	assert.Error(t, err, "dsn is required")
}
