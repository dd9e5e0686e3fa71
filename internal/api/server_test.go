// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/modeldeck/internal/registry"
)

type fakeWriter struct {
	mu      sync.Mutex
	calls   []string
	failErr error
}

func (f *fakeWriter) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failErr
}

func (f *fakeWriter) SaveProvider(_ context.Context, p registry.Provider) error {
	return f.record("save-provider:" + p.ID)
}

func (f *fakeWriter) DeleteProvider(_ context.Context, id string) error {
	return f.record("delete-provider:" + id)
}

func (f *fakeWriter) SaveModel(_ context.Context, m registry.Model) error {
	return f.record("save-model:" + m.ID)
}

func (f *fakeWriter) DeleteModel(_ context.Context, id string) error {
	return f.record("delete-model:" + id)
}

func (f *fakeWriter) RenameModel(_ context.Context, oldID string, m registry.Model) error {
	return f.record("rename-model:" + oldID + "->" + m.ID)
}

func seededRegistry() *registry.Store {
	reg := registry.NewStore()
	reg.InitProviders([]registry.Provider{
		{ID: "openai", ProviderName: "Open AI", Status: true},
		{ID: "anthropic", ProviderName: "Anthropic", Status: false},
	})
	reg.InitModels([]registry.ModelRow{
		{ID: "1", Name: "gpt-4o", DisplayName: "GPT-4o", ProviderID: "openai", ProviderName: "Open AI", SupportVision: true, Selected: true},
		{ID: "2", Name: "o3-mini", DisplayName: "o3 mini", ProviderID: "openai", ProviderName: "Open AI"},
		{ID: "3", Name: "claude", DisplayName: "Claude", ProviderID: "anthropic", ProviderName: "Anthropic", SupportVision: true},
	})
	return reg
}

func newTestServer(t *testing.T, writer *fakeWriter) (*Server, *registry.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := seededRegistry()
	var opts []ServerOption
	if writer != nil {
		opts = append(opts, WithWriter(writer))
	}
	return NewServer(nil, reg, opts...), reg
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","pending":false,"version":"dev"}`, w.Body.String())
}

func TestRegistrySnapshot(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := doJSON(t, s.Handler(), http.MethodGet, "/v0/registry", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decode[registry.Snapshot](t, w)
	assert.Len(t, snap.ModelList, 3)
	assert.Len(t, snap.ModelListByKey, 3)
	assert.Len(t, snap.ProviderList, 2)
	assert.Len(t, snap.ModelListRealID, 3)
	assert.Equal(t, registry.DefaultModel().ID, snap.CurrentModel.ID)
}

func TestListModels_Filter(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s.Handler(), http.MethodGet, "/v0/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[struct{ Models []registry.Model }](t, w)
	assert.Len(t, all.Models, 3)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v0/models?filter=supportVision%20%26%26%20provider.status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	vision := decode[struct{ Models []registry.Model }](t, w)
	require.Len(t, vision.Models, 1)
	assert.Equal(t, "gpt-4o", vision.Models[0].ID)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v0/models?filter=nope(", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_filter")
}

func TestGetModel(t *testing.T) {
	s, reg := newTestServer(t, nil)
	reg.AddModel(registry.Model{ID: "orphan", DisplayName: "Orphan", Provider: registry.ProviderRef{ID: "gone"}})

	w := doJSON(t, s.Handler(), http.MethodGet, "/v0/models/orphan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Model    registry.Model
		Provider registry.Provider
	}](t, w)
	assert.Equal(t, "orphan", body.Model.ID)
	assert.Equal(t, registry.PlaceholderProvider("gone"), body.Provider)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v0/models/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "model_not_found")
}

func TestModelLifecycle(t *testing.T) {
	writer := &fakeWriter{}
	s, reg := newTestServer(t, writer)
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v0/models", map[string]any{
		"id":       "gpt-5",
		"provider": map[string]any{"id": "openai"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[registry.Model](t, w)
	assert.Equal(t, "gpt-5", created.DisplayName)
	assert.Equal(t, "Open AI", created.Provider.ProviderName)
	assert.Equal(t, registry.DefaultModelType, created.Type)

	w = doJSON(t, h, http.MethodPatch, "/v0/models/gpt-5", map[string]any{"id": "gpt-5.1", "maxTokens": 400000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode[registry.Model](t, w)
	assert.Equal(t, "gpt-5.1", patched.ID)
	assert.Equal(t, 400000, patched.MaxTokens)
	_, ok := reg.State().Model("gpt-5")
	assert.False(t, ok)

	w = doJSON(t, h, http.MethodPut, "/v0/models/gpt-5.1/selected", map[string]any{"selected": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[registry.Model](t, w).Selected)

	w = doJSON(t, h, http.MethodDelete, "/v0/models/gpt-5.1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, reg.State().ModelList(), 3)

	assert.Equal(t, []string{
		"save-model:gpt-5",
		"rename-model:gpt-5->gpt-5.1",
		"save-model:gpt-5.1",
		"delete-model:gpt-5.1",
	}, writer.calls)
}

func TestModelWrites_Validation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v0/models", map[string]any{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/v0/models/missing", map[string]any{"displayName": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/v0/models/gpt-4o", map[string]any{"id": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPut, "/v0/models/gpt-4o/selected", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/v0/models/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPersistFailureLeavesRegistryUntouched(t *testing.T) {
	writer := &fakeWriter{failErr: errors.New("disk full")}
	s, reg := newTestServer(t, writer)

	w := doJSON(t, s.Handler(), http.MethodDelete, "/v0/models/gpt-4o", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "persist_failed")

	_, ok := reg.State().Model("gpt-4o")
	assert.True(t, ok)
}

func TestRenameModel_FailedWriteKeepsBothSidesInStep(t *testing.T) {
	writer := &fakeWriter{failErr: errors.New("unique violation")}
	s, reg := newTestServer(t, writer)

	w := doJSON(t, s.Handler(), http.MethodPatch, "/v0/models/o3-mini", map[string]any{"id": "o3"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, []string{"rename-model:o3-mini->o3"}, writer.calls, "a rename is a single atomic write")
	_, ok := reg.State().Model("o3-mini")
	assert.True(t, ok)
	_, ok = reg.State().Model("o3")
	assert.False(t, ok)
}

func TestOrderModels(t *testing.T) {
	s, reg := newTestServer(t, nil)

	w := doJSON(t, s.Handler(), http.MethodPut, "/v0/models/order", map[string]any{"ids": []string{"claude", "unknown", "claude", "o3-mini"}})
	require.Equal(t, http.StatusOK, w.Code)

	var ids []string
	for _, m := range reg.State().ModelList() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"claude", "o3-mini", "gpt-4o"}, ids)
	assert.Len(t, reg.State().ModelListByKey(), 3)
}

func TestProviderLifecycle(t *testing.T) {
	writer := &fakeWriter{}
	s, reg := newTestServer(t, writer)
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v0/providers", map[string]any{"providerName": "Mistral"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[registry.Provider](t, w)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Status)

	w = doJSON(t, h, http.MethodPatch, "/v0/providers/"+created.ID, map[string]any{"providerName": "Mistral AI"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mistral AI", decode[registry.Provider](t, w).ProviderName)

	w = doJSON(t, h, http.MethodPut, "/v0/providers/"+created.ID+"/status", map[string]any{"status": false})
	require.Equal(t, http.StatusOK, w.Code)
	p, ok := reg.State().Provider(created.ID)
	require.True(t, ok)
	assert.False(t, p.Status)

	w = doJSON(t, h, http.MethodGet, "/v0/providers/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/v0/providers/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok = reg.State().Provider(created.ID)
	assert.False(t, ok)

	w = doJSON(t, h, http.MethodDelete, "/v0/providers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "provider_not_found")

	assert.Len(t, writer.calls, 4)
}

func TestListProviders(t *testing.T) {
	s, reg := newTestServer(t, nil)
	reg.AddProvider(registry.Provider{ID: "local", ProviderName: "Local"})

	w := doJSON(t, s.Handler(), http.MethodGet, "/v0/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct{ Providers []registry.Provider }](t, w).Providers, 3)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v0/providers?source=derived", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct{ Providers []registry.Provider }](t, w).Providers, 2)
}

func TestCurrentSelection(t *testing.T) {
	s, reg := newTestServer(t, nil)
	h := s.Handler()

	w := doJSON(t, h, http.MethodGet, "/v0/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registry.DefaultModel().ID, decode[currentResponse](t, w).Model.ID)

	w = doJSON(t, h, http.MethodPut, "/v0/current", map[string]any{"modelId": "claude"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[currentResponse](t, w)
	assert.Equal(t, "claude", resp.Model.ID)
	assert.Equal(t, "Anthropic", resp.Provider.ProviderName)
	assert.Equal(t, "selected", resp.Result)

	w = doJSON(t, h, http.MethodPut, "/v0/current", map[string]any{"modelId": "claude"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_current", decode[currentResponse](t, w).Result)

	w = doJSON(t, h, http.MethodPut, "/v0/current", map[string]any{"modelId": "gpt-4o", "providerId": "anthropic"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "model_not_found")
	assert.Equal(t, "claude", reg.State().CurrentModel().ID)

	w = doJSON(t, h, http.MethodPut, "/v0/current", map[string]any{"modelId": "gpt-4o", "providerId": "openai"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gpt-4o", reg.State().CurrentModel().ID)

	w = doJSON(t, h, http.MethodPut, "/v0/current", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorder(t *testing.T) {
	models := []registry.Model{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := reorder(models, []string{"c", "x", "a"})
	assert.Equal(t, []registry.Model{{ID: "c"}, {ID: "a"}, {ID: "b"}}, got)
	assert.Equal(t, models, reorder(models, nil))
}
