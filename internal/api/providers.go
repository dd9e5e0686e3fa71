// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/traylinx/modeldeck/internal/registry"
	"github.com/traylinx/modeldeck/internal/store"
)

// listProviders returns the full provider catalogue. With ?source=derived it
// returns the providers derived from model rows instead.
func (s *Server) listProviders(c *gin.Context) {
	st := s.registry.State()
	if c.Query("source") == "derived" {
		c.JSON(http.StatusOK, gin.H{"providers": st.ProviderList()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": st.AllProviderList()})
}

func (s *Server) getProvider(c *gin.Context) {
	p, ok := s.registry.State().Provider(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "provider_not_found", "provider "+c.Param("id")+" not found")
		return
	}
	c.JSON(http.StatusOK, p)
}

type createProviderRequest struct {
	ID           string `json:"id"`
	ProviderName string `json:"providerName" binding:"required"`
	ProviderLogo string `json:"providerLogo"`
	Status       *bool  `json:"status"`
}

func (s *Server) createProvider(c *gin.Context) {
	var req createProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p := registry.Provider{
		ID:           strings.TrimSpace(req.ID),
		ProviderName: req.ProviderName,
		ProviderLogo: req.ProviderLogo,
		Status:       true,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if req.Status != nil {
		p.Status = *req.Status
	}

	if !s.persist(c, "provider "+p.ID, func(ctx context.Context, w store.Writer) error {
		return w.SaveProvider(ctx, p)
	}) {
		return
	}
	st := s.registry.AddProvider(p)
	created, _ := st.Provider(p.ID)
	c.JSON(http.StatusCreated, created)
}

type renameProviderRequest struct {
	ProviderName string `json:"providerName" binding:"required"`
}

func (s *Server) renameProvider(c *gin.Context) {
	id := c.Param("id")
	var req renameProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p, ok := s.registry.State().Provider(id)
	if !ok {
		writeError(c, http.StatusNotFound, "provider_not_found", "provider "+id+" not found")
		return
	}
	p.ProviderName = req.ProviderName
	if !s.persist(c, "provider "+id, func(ctx context.Context, w store.Writer) error {
		return w.SaveProvider(ctx, p)
	}) {
		return
	}
	st := s.registry.RenameProvider(id, req.ProviderName)
	p, _ = st.Provider(id)
	c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status *bool `json:"status" binding:"required"`
}

func (s *Server) toggleProvider(c *gin.Context) {
	id := c.Param("id")
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p, ok := s.registry.State().Provider(id)
	if !ok {
		writeError(c, http.StatusNotFound, "provider_not_found", "provider "+id+" not found")
		return
	}
	p.Status = *req.Status
	if !s.persist(c, "provider "+id, func(ctx context.Context, w store.Writer) error {
		return w.SaveProvider(ctx, p)
	}) {
		return
	}
	st := s.registry.ToggleProvider(id, *req.Status)
	p, _ = st.Provider(id)
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProvider(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.registry.State().Provider(id); !ok {
		writeError(c, http.StatusNotFound, "provider_not_found", "provider "+id+" not found")
		return
	}
	if !s.persist(c, "provider "+id, func(ctx context.Context, w store.Writer) error {
		return w.DeleteProvider(ctx, id)
	}) {
		return
	}
	s.registry.DeleteProvider(id)
	c.Status(http.StatusNoContent)
}
