// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry holds the catalogue of LLM providers and models exposed to the
// chat UI, together with the active model selection.
//
// The catalogue lives in an immutable State value. Every operation in this package
// is a reducer: it takes a State and returns a new one, keeping each ordered list
// and its id-keyed index in lockstep. Store wraps a State for concurrent callers.
package registry

// DefaultModelType is the model type used when a row does not carry one.
const DefaultModelType = "default"

// ProviderRef is the non-owning reference a Model keeps to its provider.
// Name and logo are denormalised copies taken from the row the model came from.
type ProviderRef struct {
	ID           string `json:"id" yaml:"id"`
	ProviderName string `json:"providerName" yaml:"providerName"`
	ProviderLogo string `json:"providerLogo,omitempty" yaml:"providerLogo,omitempty"`
}

// Provider is a named source of models, typically an API vendor.
type Provider struct {
	// ID is the unique identifier for the provider
	ID string `json:"id" yaml:"id"`
	// ProviderName is the human-readable name shown in the UI
	ProviderName string `json:"providerName" yaml:"providerName"`
	// ProviderLogo is an optional logo URL
	ProviderLogo string `json:"providerLogo,omitempty" yaml:"providerLogo,omitempty"`
	// Status toggles the provider's visibility and availability
	Status bool `json:"status" yaml:"status"`
}

// Ref returns the reference a model uses to point at p.
func (p Provider) Ref() ProviderRef {
	return ProviderRef{ID: p.ID, ProviderName: p.ProviderName, ProviderLogo: p.ProviderLogo}
}

// Model is a selectable LLM scoped to a provider.
type Model struct {
	// ID is the public model identifier (the row's name)
	ID string `json:"id" yaml:"id"`
	// DisplayName is the human-readable name for the model
	DisplayName string `json:"displayName" yaml:"displayName"`
	// MaxTokens is the context window; zero means unknown
	MaxTokens int `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	// SupportVision reports whether the model accepts image input
	SupportVision bool `json:"supportVision,omitempty" yaml:"supportVision,omitempty"`
	// SupportTool reports whether the model supports tool calls
	SupportTool bool `json:"supportTool,omitempty" yaml:"supportTool,omitempty"`
	// Selected marks the model as enabled in the model picker
	Selected bool `json:"selected" yaml:"selected"`
	// Type classifies the model; DefaultModelType when unset
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Provider references the owning provider by id
	Provider ProviderRef `json:"provider" yaml:"provider"`
}

// ModelPatch carries a partial update for UpdateModel. Nil fields are left untouched.
type ModelPatch struct {
	ID            *string      `json:"id,omitempty"`
	DisplayName   *string      `json:"displayName,omitempty"`
	MaxTokens     *int         `json:"maxTokens,omitempty"`
	SupportVision *bool        `json:"supportVision,omitempty"`
	SupportTool   *bool        `json:"supportTool,omitempty"`
	Selected      *bool        `json:"selected,omitempty"`
	Type          *string      `json:"type,omitempty"`
	Provider      *ProviderRef `json:"provider,omitempty"`
}

func (p ModelPatch) apply(m Model) Model {
	if p.ID != nil {
		m.ID = *p.ID
	}
	if p.DisplayName != nil {
		m.DisplayName = *p.DisplayName
	}
	if p.MaxTokens != nil {
		m.MaxTokens = *p.MaxTokens
	}
	if p.SupportVision != nil {
		m.SupportVision = *p.SupportVision
	}
	if p.SupportTool != nil {
		m.SupportTool = *p.SupportTool
	}
	if p.Selected != nil {
		m.Selected = *p.Selected
	}
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Provider != nil {
		m.Provider = *p.Provider
	}
	return m
}

// ModelRow is the shape returned by the data-access layer for one model.
// Zero values stand for absent optional columns.
type ModelRow struct {
	// ID is the database identifier
	ID string `json:"id" yaml:"id"`
	// Name is the public model identifier
	Name          string `json:"name" yaml:"name"`
	DisplayName   string `json:"displayName" yaml:"displayName"`
	APIURL        string `json:"apiUrl,omitempty" yaml:"apiUrl,omitempty"`
	ProviderID    string `json:"providerId" yaml:"providerId"`
	ProviderName  string `json:"providerName" yaml:"providerName"`
	ProviderLogo  string `json:"providerLogo,omitempty" yaml:"providerLogo,omitempty"`
	MaxTokens     int    `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	SupportVision bool   `json:"supportVision,omitempty" yaml:"supportVision,omitempty"`
	SupportTool   bool   `json:"supportTool,omitempty" yaml:"supportTool,omitempty"`
	Selected      bool   `json:"selected,omitempty" yaml:"selected,omitempty"`
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
}

func (r ModelRow) providerRef() ProviderRef {
	return ProviderRef{ID: r.ProviderID, ProviderName: r.ProviderName, ProviderLogo: r.ProviderLogo}
}

// Model converts the row into the public model view.
func (r ModelRow) Model() Model {
	modelType := r.Type
	if modelType == "" {
		modelType = DefaultModelType
	}
	return Model{
		ID:            r.Name,
		DisplayName:   r.DisplayName,
		MaxTokens:     r.MaxTokens,
		SupportVision: r.SupportVision,
		SupportTool:   r.SupportTool,
		Selected:      r.Selected,
		Type:          modelType,
		Provider:      r.providerRef(),
	}
}

// ModelRealID is the database-id view of a model.
type ModelRealID struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	DisplayName   string      `json:"displayName"`
	APIURL        string      `json:"apiUrl,omitempty"`
	MaxTokens     int         `json:"maxTokens,omitempty"`
	SupportVision bool        `json:"supportVision,omitempty"`
	Selected      bool        `json:"selected"`
	Provider      ProviderRef `json:"provider"`
}

// RealID converts the row into its database-id view.
func (r ModelRow) RealID() ModelRealID {
	return ModelRealID{
		ID:            r.ID,
		Name:          r.Name,
		DisplayName:   r.DisplayName,
		APIURL:        r.APIURL,
		MaxTokens:     r.MaxTokens,
		SupportVision: r.SupportVision,
		Selected:      r.Selected,
		Provider:      r.providerRef(),
	}
}

// DefaultModel returns the built-in model used until a selection is made,
// and whenever the current model disappears from the catalogue.
func DefaultModel() Model {
	return Model{
		ID:            "gpt-4o-mini",
		DisplayName:   "FimallAI 4o Mini",
		SupportVision: true,
		SupportTool:   true,
		MaxTokens:     131072,
		Selected:      true,
		Type:          DefaultModelType,
		Provider: ProviderRef{
			ID:           "openai",
			ProviderName: "Open AI",
		},
	}
}

// PlaceholderProvider stands in for a provider id that is not in the catalogue.
func PlaceholderProvider(id string) Provider {
	return Provider{ID: id, ProviderName: id}
}
