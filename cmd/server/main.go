// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the modeldeck server.
// The server loads the LLM provider and model catalogue from SQLite, PostgreSQL
// or a catalogue file and serves it, along with the current model selection,
// to chat clients over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/modeldeck/internal/api"
	"github.com/traylinx/modeldeck/internal/buildinfo"
	"github.com/traylinx/modeldeck/internal/config"
	"github.com/traylinx/modeldeck/internal/logging"
	"github.com/traylinx/modeldeck/internal/registry"
	"github.com/traylinx/modeldeck/internal/store"
	"github.com/traylinx/modeldeck/internal/upload"
	"github.com/traylinx/modeldeck/internal/watcher"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

const shutdownTimeout = 10 * time.Second

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath  string
		envPath     string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&envPath, "env", ".env", "Environment file to load before reading the config")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	if errLoad := godotenv.Load(envPath); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
		log.WithError(errLoad).Warn("failed to load .env file")
	}

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err = cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logging.SetDebug(cfg.Debug)
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir, cfg.LogMaxSizeMB); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}
	defer logging.Close()

	log.Infof("%s starting (driver=%s)", buildinfo.String(), cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg); err != nil {
		log.Errorf("server exited: %v", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	src, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := src.Close(); errClose != nil {
			log.Warnf("failed to close store: %v", errClose)
		}
	}()

	reg := registry.NewStore()
	if err = store.Load(ctx, src, reg); err != nil {
		return err
	}
	if cfg.DefaultModel != "" {
		if _, result := reg.Select(cfg.DefaultModel); !result.Found() {
			log.Warnf("default model %s is not in the catalogue, keeping %s", cfg.DefaultModel, reg.State().CurrentModel().ID)
		}
	}

	if fs, ok := src.(*store.FileStore); ok && cfg.Store.Watch {
		w := watcher.NewCatalogWatcher(fs, reg, time.Duration(cfg.Store.WatchDebounceMs)*time.Millisecond)
		if err = w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	opts := []api.ServerOption{
		api.WithUploads(upload.NewManager(cfg.Upload.MaxImages, cfg.Upload.MaxBytes,
			upload.WithIdleTimeout(cfg.Upload.SessionIdle()),
			upload.WithMaxSessions(cfg.Upload.MaxSessions),
		)),
	}
	if writer, ok := src.(store.Writer); ok {
		opts = append(opts, api.WithWriter(writer))
	} else {
		log.Info("Catalogue source is read-only, edits stay in memory")
	}
	server := api.NewServer(cfg, reg, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
