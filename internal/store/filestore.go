// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/traylinx/modeldeck/internal/registry"
)

// Catalog is the on-disk layout of a catalogue file.
type Catalog struct {
	Providers []registry.Provider
	Models    []registry.ModelRow
}

type catalogFile struct {
	Providers []catalogProvider   `json:"providers" yaml:"providers"`
	Models    []registry.ModelRow `json:"models" yaml:"models"`
}

// catalogProvider lets a file omit status; providers are enabled unless stated otherwise.
type catalogProvider struct {
	ID           string `json:"id" yaml:"id"`
	ProviderName string `json:"providerName" yaml:"providerName"`
	ProviderLogo string `json:"providerLogo" yaml:"providerLogo"`
	Status       *bool  `json:"status" yaml:"status"`
}

// FileStore reads the catalogue from a YAML or JSON file. It is read-only.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the catalogue at path. The format follows
// the extension: .json is JSON, anything else is YAML.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the catalogue file path.
func (f *FileStore) Path() string { return f.path }

// LoadCatalog reads and parses the whole catalogue in one pass.
func (f *FileStore) LoadCatalog(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return Catalog{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalogue %s: %w", f.path, err)
	}
	return ParseCatalog(data, strings.ToLower(filepath.Ext(f.path)) == ".json")
}

// ParseCatalog decodes a catalogue document. Model rows that omit provider
// name or logo inherit them from the provider list.
func ParseCatalog(data []byte, isJSON bool) (Catalog, error) {
	var raw catalogFile
	var err error
	if isJSON {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("parse catalogue: %w", err)
	}

	catalog := Catalog{
		Providers: make([]registry.Provider, 0, len(raw.Providers)),
		Models:    make([]registry.ModelRow, 0, len(raw.Models)),
	}
	byID := make(map[string]registry.Provider, len(raw.Providers))
	for _, p := range raw.Providers {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		provider := registry.Provider{
			ID:           p.ID,
			ProviderName: p.ProviderName,
			ProviderLogo: p.ProviderLogo,
			Status:       p.Status == nil || *p.Status,
		}
		if provider.ProviderName == "" {
			provider.ProviderName = provider.ID
		}
		catalog.Providers = append(catalog.Providers, provider)
		byID[provider.ID] = provider
	}
	for _, row := range raw.Models {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		if row.ID == "" {
			row.ID = row.Name
		}
		if p, ok := byID[row.ProviderID]; ok {
			if row.ProviderName == "" {
				row.ProviderName = p.ProviderName
			}
			if row.ProviderLogo == "" {
				row.ProviderLogo = p.ProviderLogo
			}
		}
		catalog.Models = append(catalog.Models, row)
	}
	return catalog, nil
}

// LoadProviders returns the providers listed in the file.
func (f *FileStore) LoadProviders(ctx context.Context) ([]registry.Provider, error) {
	catalog, err := f.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Providers, nil
}

// LoadModels returns the model rows listed in the file.
func (f *FileStore) LoadModels(ctx context.Context) ([]registry.ModelRow, error) {
	catalog, err := f.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Models, nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
