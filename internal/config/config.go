// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the modeldeck server.
// It handles loading and parsing YAML configuration files, environment overrides,
// and provides structured access to server, logging, catalogue store and upload settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers understood by StoreConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

const (
	DefaultPort            = 8318
	DefaultSQLitePath      = "modeldeck.db"
	DefaultMaxImages       = 5
	DefaultMaxImageBytes   = 5 * 1024 * 1024
	DefaultLogMaxSizeMB    = 10
	DefaultWatchDebounceMs = 200
	DefaultSessionIdleMins = 30
	DefaultMaxSessions     = 256
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces.
	Host string `yaml:"host" json:"-"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotating log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// LogMaxSizeMB is the size at which the main log file is rotated.
	LogMaxSizeMB int `yaml:"log-max-size-mb" json:"log-max-size-mb"`

	// DefaultModel, when set, is selected after the catalogue loads.
	DefaultModel string `yaml:"default-model" json:"default-model"`

	// Store selects where provider and model rows come from.
	Store StoreConfig `yaml:"store" json:"store"`

	// Upload configures image attachment limits.
	Upload UploadConfig `yaml:"upload" json:"upload"`
}

// StoreConfig configures the catalogue data source.
type StoreConfig struct {
	// Driver is one of "sqlite", "postgres" or "file".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the database connection string (sqlite path or postgres URL).
	DSN string `yaml:"dsn" json:"-"`
	// Schema optionally qualifies postgres table names.
	Schema string `yaml:"schema" json:"schema"`
	// CatalogPath is the YAML or JSON catalogue read by the file driver.
	CatalogPath string `yaml:"catalog-path" json:"catalog-path"`
	// Watch reloads the catalogue file when it changes.
	Watch bool `yaml:"watch" json:"watch"`
	// WatchDebounceMs coalesces bursts of file events.
	WatchDebounceMs int `yaml:"watch-debounce-ms" json:"watch-debounce-ms"`
}

// UploadConfig configures the image attachment tray.
type UploadConfig struct {
	// MaxImages is the number of images a tray may hold.
	MaxImages int `yaml:"max-images" json:"max-images"`
	// MaxBytes is the size limit per image.
	MaxBytes int64 `yaml:"max-bytes" json:"max-bytes"`
	// SessionIdleMinutes frees a session's tray after this long without use.
	SessionIdleMinutes int `yaml:"session-idle-minutes" json:"session-idle-minutes"`
	// MaxSessions caps the number of trays held at once; the least recently used is freed first.
	MaxSessions int `yaml:"max-sessions" json:"max-sessions"`
}

// SessionIdle returns SessionIdleMinutes as a duration.
func (u UploadConfig) SessionIdle() time.Duration {
	return time.Duration(u.SessionIdleMinutes) * time.Minute
}

// Addr returns the listen address for the API server.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// LoadConfig reads YAML from configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			cfg.Sanitize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		// Defaults are already set so absent keys keep them.
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Sanitize()
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Port:         DefaultPort,
		LogDir:       "logs",
		LogMaxSizeMB: DefaultLogMaxSizeMB,
		Store: StoreConfig{
			Driver:          DriverSQLite,
			WatchDebounceMs: DefaultWatchDebounceMs,
		},
		Upload: UploadConfig{
			MaxImages:          DefaultMaxImages,
			MaxBytes:           DefaultMaxImageBytes,
			SessionIdleMinutes: DefaultSessionIdleMins,
			MaxSessions:        DefaultMaxSessions,
		},
	}
}

// Sanitize normalises values and restores defaults for unusable ones.
func (cfg *Config) Sanitize() {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = "logs"
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	cfg.DefaultModel = strings.TrimSpace(cfg.DefaultModel)

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "", "sqlite3":
		cfg.Store.Driver = DriverSQLite
	case "pg", "pgx", "postgresql":
		cfg.Store.Driver = DriverPostgres
	}
	cfg.Store.DSN = strings.TrimSpace(cfg.Store.DSN)
	if cfg.Store.Driver == DriverSQLite && cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultSQLitePath
	}
	cfg.Store.CatalogPath = strings.TrimSpace(cfg.Store.CatalogPath)
	if cfg.Store.WatchDebounceMs <= 0 {
		cfg.Store.WatchDebounceMs = DefaultWatchDebounceMs
	}

	if cfg.Upload.MaxImages <= 0 {
		cfg.Upload.MaxImages = DefaultMaxImages
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = DefaultMaxImageBytes
	}
	if cfg.Upload.SessionIdleMinutes <= 0 {
		cfg.Upload.SessionIdleMinutes = DefaultSessionIdleMins
	}
	if cfg.Upload.MaxSessions <= 0 {
		cfg.Upload.MaxSessions = DefaultMaxSessions
	}
}

// Validate reports settings that cannot work together.
func (cfg *Config) Validate() error {
	switch cfg.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the postgres driver")
		}
	case DriverFile:
		if cfg.Store.CatalogPath == "" {
			return fmt.Errorf("config: store.catalog-path is required for the file driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Watch && cfg.Store.Driver != DriverFile {
		return fmt.Errorf("config: store.watch requires the file driver")
	}
	return nil
}

// ApplyEnv overrides file settings with MODELDECK_* environment variables.
// lookup is usually os.LookupEnv.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}

	if value, ok := get("MODELDECK_HOST"); ok {
		cfg.Host = value
	}
	if value, ok := get("MODELDECK_PORT", "PORT"); ok {
		if port, err := strconv.Atoi(value); err == nil {
			cfg.Port = port
		}
	}
	if value, ok := get("MODELDECK_DEBUG"); ok {
		if debug, err := strconv.ParseBool(value); err == nil {
			cfg.Debug = debug
		}
	}
	if value, ok := get("MODELDECK_STORE_DRIVER"); ok {
		cfg.Store.Driver = value
		if cfg.Store.DSN == DefaultSQLitePath {
			cfg.Store.DSN = ""
		}
	}
	if value, ok := get("MODELDECK_STORE_DSN", "PGSTORE_DSN"); ok {
		cfg.Store.DSN = value
	}
	if value, ok := get("MODELDECK_CATALOG_PATH"); ok {
		cfg.Store.CatalogPath = value
	}
	if value, ok := get("MODELDECK_DEFAULT_MODEL"); ok {
		cfg.DefaultModel = value
	}
	cfg.Sanitize()
}
