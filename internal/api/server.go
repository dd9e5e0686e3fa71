// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the model registry over HTTP. It serves the catalogue,
// the current selection and the per-session image tray under /v0, and pushes
// registry snapshots to websocket subscribers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/modeldeck/internal/buildinfo"
	"github.com/traylinx/modeldeck/internal/config"
	"github.com/traylinx/modeldeck/internal/logging"
	"github.com/traylinx/modeldeck/internal/registry"
	"github.com/traylinx/modeldeck/internal/store"
	"github.com/traylinx/modeldeck/internal/upload"
)

// SessionHeader selects the upload tray a request works on.
const SessionHeader = "X-Session-ID"

const defaultSession = "default"

// Server is the HTTP front of the registry.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	registry   *registry.Store
	writer     store.Writer
	uploads    *upload.Manager
	filters    *filterCache
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithWriter makes catalogue edits write through to w before they reach the registry.
func WithWriter(w store.Writer) ServerOption {
	return func(s *Server) { s.writer = w }
}

// WithUploads sets the tray manager used by the upload routes.
func WithUploads(m *upload.Manager) ServerOption {
	return func(s *Server) { s.uploads = m }
}

// NewServer builds the router for reg. cfg may be nil, in which case defaults apply.
func NewServer(cfg *config.Config, reg *registry.Store, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		registry: reg,
		filters:  newFilterCache(128),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.uploads == nil {
		s.uploads = upload.NewManager(cfg.Upload.MaxImages, cfg.Upload.MaxBytes,
			upload.WithIdleTimeout(cfg.Upload.SessionIdle()),
			upload.WithMaxSessions(cfg.Upload.MaxSessions),
		)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.MaxMultipartMemory = cfg.Upload.MaxBytes * int64(max(cfg.Upload.MaxImages, 1))
	s.engine = engine
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"pending": s.registry.State().IsPending(),
			"version": buildinfo.Version,
		})
	})

	v0 := s.engine.Group("/v0")
	{
		v0.GET("/registry", s.getRegistry)

		v0.GET("/models", s.listModels)
		v0.POST("/models", s.createModel)
		v0.PUT("/models/order", s.orderModels)
		v0.GET("/models/:id", s.getModel)
		v0.PATCH("/models/:id", s.patchModel)
		v0.DELETE("/models/:id", s.deleteModel)
		v0.PUT("/models/:id/selected", s.setModelSelected)

		v0.GET("/providers", s.listProviders)
		v0.POST("/providers", s.createProvider)
		v0.GET("/providers/:id", s.getProvider)
		v0.PATCH("/providers/:id", s.renameProvider)
		v0.PUT("/providers/:id/status", s.toggleProvider)
		v0.DELETE("/providers/:id", s.deleteProvider)

		v0.GET("/current", s.getCurrent)
		v0.PUT("/current", s.putCurrent)

		v0.GET("/uploads", s.listUploads)
		v0.POST("/uploads", s.postUploads)
		v0.GET("/uploads/blob/:handle", s.getUploadBlob)
		v0.DELETE("/uploads/:index", s.deleteUpload)
		v0.DELETE("/uploads", s.clearUploads)

		v0.GET("/stream", s.stream)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Stop shuts the server down and releases staged uploads.
func (s *Server) Stop(ctx context.Context) error {
	defer s.uploads.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	log.Info("API server stopped")
	return nil
}

func (s *Server) getRegistry(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.State().Snapshot())
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// persist runs fn against the configured writer. It reports false, after
// writing the error response, when persistence fails.
func (s *Server) persist(c *gin.Context, what string, fn func(ctx context.Context, w store.Writer) error) bool {
	if s.writer == nil {
		return true
	}
	if err := fn(c.Request.Context(), s.writer); err != nil {
		logging.FromContext(c).Errorf("Failed to persist %s: %v", what, err)
		writeError(c, http.StatusInternalServerError, "persist_failed", err.Error())
		return false
	}
	return true
}
