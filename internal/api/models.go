// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/modeldeck/internal/registry"
	"github.com/traylinx/modeldeck/internal/store"
)

func (s *Server) listModels(c *gin.Context) {
	models, err := s.filters.Filter(strings.TrimSpace(c.Query("filter")), s.registry.State())
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) getModel(c *gin.Context) {
	st := s.registry.State()
	m, ok := st.Model(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "model_not_found", "model "+c.Param("id")+" not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": m, "provider": st.ProviderFor(m.Provider.ID)})
}

func (s *Server) createModel(c *gin.Context) {
	var m registry.Model
	if err := c.ShouldBindJSON(&m); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" || m.Provider.ID == "" {
		writeError(c, http.StatusBadRequest, "invalid_request", "id and provider.id are required")
		return
	}
	if m.DisplayName == "" {
		m.DisplayName = m.ID
	}
	if m.Provider.ProviderName == "" {
		p := s.registry.State().ProviderFor(m.Provider.ID)
		m.Provider = p.Ref()
	}
	if m.Type == "" {
		m.Type = registry.DefaultModelType
	}

	if !s.persist(c, "model "+m.ID, func(ctx context.Context, w store.Writer) error {
		return w.SaveModel(ctx, m)
	}) {
		return
	}
	st := s.registry.AddModel(m)
	created, _ := st.Model(m.ID)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) patchModel(c *gin.Context) {
	id := c.Param("id")
	var patch registry.ModelPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if patch.ID != nil && strings.TrimSpace(*patch.ID) == "" {
		writeError(c, http.StatusBadRequest, "invalid_request", "id must not be empty")
		return
	}

	current := s.registry.State()
	if _, ok := current.Model(id); !ok {
		writeError(c, http.StatusNotFound, "model_not_found", "model "+id+" not found")
		return
	}
	newID := id
	if patch.ID != nil {
		newID = *patch.ID
	}
	updated, _ := registry.UpdateModel(current, id, patch).Model(newID)

	if !s.persist(c, "model "+id, func(ctx context.Context, w store.Writer) error {
		if newID != id {
			return w.RenameModel(ctx, id, updated)
		}
		return w.SaveModel(ctx, updated)
	}) {
		return
	}
	st := s.registry.UpdateModel(id, patch)
	m, _ := st.Model(newID)
	c.JSON(http.StatusOK, m)
}

func (s *Server) deleteModel(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.registry.State().Model(id); !ok {
		writeError(c, http.StatusNotFound, "model_not_found", "model "+id+" not found")
		return
	}
	if !s.persist(c, "model "+id, func(ctx context.Context, w store.Writer) error {
		return w.DeleteModel(ctx, id)
	}) {
		return
	}
	s.registry.DeleteModel(id)
	c.Status(http.StatusNoContent)
}

type selectedRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

func (s *Server) setModelSelected(c *gin.Context) {
	id := c.Param("id")
	var req selectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	m, ok := s.registry.State().Model(id)
	if !ok {
		writeError(c, http.StatusNotFound, "model_not_found", "model "+id+" not found")
		return
	}
	m.Selected = *req.Selected
	if !s.persist(c, "model "+id, func(ctx context.Context, w store.Writer) error {
		return w.SaveModel(ctx, m)
	}) {
		return
	}
	st := s.registry.SetSelected(id, *req.Selected)
	m, _ = st.Model(id)
	c.JSON(http.StatusOK, m)
}

type orderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// orderModels moves the listed models to the front in the given order.
// Unknown ids are ignored and unlisted models keep their relative order.
func (s *Server) orderModels(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	st := s.registry.Update(func(cur registry.State) registry.State {
		return registry.SetModelList(cur, reorder(cur.ModelList(), req.IDs))
	})
	c.JSON(http.StatusOK, gin.H{"models": st.ModelList()})
}

func reorder(models []registry.Model, ids []string) []registry.Model {
	byID := make(map[string]registry.Model, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	placed := make(map[string]bool, len(ids))
	out := make([]registry.Model, 0, len(models))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, m)
	}
	for _, m := range models {
		if !placed[m.ID] {
			placed[m.ID] = true
			out = append(out, m)
		}
	}
	return out
}
