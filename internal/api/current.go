// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/modeldeck/internal/registry"
)

type currentResponse struct {
	Model    registry.Model    `json:"model"`
	Provider registry.Provider `json:"provider"`
	Result   string            `json:"result,omitempty"`
}

func (s *Server) getCurrent(c *gin.Context) {
	st := s.registry.State()
	m := st.CurrentModel()
	c.JSON(http.StatusOK, currentResponse{Model: m, Provider: st.ProviderFor(m.Provider.ID)})
}

type selectRequest struct {
	ModelID    string `json:"modelId" binding:"required"`
	ProviderID string `json:"providerId"`
}

// putCurrent switches the current model. A providerId narrows the match to
// that provider; without it the first model with the id wins.
func (s *Server) putCurrent(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var (
		st     registry.State
		result registry.Selection
	)
	if req.ProviderID != "" {
		st, result = s.registry.SelectExact(req.ProviderID, req.ModelID)
	} else {
		st, result = s.registry.Select(req.ModelID)
	}
	if !result.Found() {
		writeError(c, http.StatusNotFound, "model_not_found", "no model "+req.ModelID+" to select")
		return
	}
	m := st.CurrentModel()
	c.JSON(http.StatusOK, currentResponse{Model: m, Provider: st.ProviderFor(m.Provider.ID), Result: result.String()})
}
