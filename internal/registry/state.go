// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

// State is an immutable snapshot of the catalogue. Reducers never modify a State
// in place; slices and maps are copied before they change.
//
// The zero State is not ready for use; start from NewState.
type State struct {
	currentModel Model

	// providerList is derived from model rows; allProviderList is the full,
	// editable provider catalogue.
	providerList         []Provider
	providerListByKey    map[string]Provider
	allProviderList      []Provider
	allProviderListByKey map[string]Provider

	modelList       []Model
	modelListByKey  map[string]Model
	modelListRealID []ModelRealID

	pending bool
}

// NewState returns an empty catalogue whose current model is DefaultModel.
func NewState() State {
	return State{
		currentModel:         DefaultModel(),
		providerListByKey:    map[string]Provider{},
		allProviderListByKey: map[string]Provider{},
		modelListByKey:       map[string]Model{},
		pending:              true,
	}
}

// CurrentModel returns the active model. It is never the zero Model.
func (s State) CurrentModel() Model { return s.currentModel }

// IsPending reports whether the initial catalogue load is still outstanding.
func (s State) IsPending() bool { return s.pending }

// ModelList returns the models in display order.
func (s State) ModelList() []Model { return append([]Model(nil), s.modelList...) }

// ModelListByKey returns a copy of the id -> model index.
func (s State) ModelListByKey() map[string]Model { return copyMap(s.modelListByKey) }

// ModelListRealID returns the database-id view of the models.
func (s State) ModelListRealID() []ModelRealID {
	return append([]ModelRealID(nil), s.modelListRealID...)
}

// ProviderList returns the providers derived from the loaded model rows.
func (s State) ProviderList() []Provider { return append([]Provider(nil), s.providerList...) }

// ProviderListByKey returns a copy of the id -> provider index for ProviderList.
func (s State) ProviderListByKey() map[string]Provider { return copyMap(s.providerListByKey) }

// AllProviderList returns the full provider catalogue in display order.
func (s State) AllProviderList() []Provider { return append([]Provider(nil), s.allProviderList...) }

// AllProviderListByKey returns a copy of the id -> provider index for AllProviderList.
func (s State) AllProviderListByKey() map[string]Provider { return copyMap(s.allProviderListByKey) }

// Model looks up a model by id.
func (s State) Model(id string) (Model, bool) {
	m, ok := s.modelListByKey[id]
	return m, ok
}

// Provider looks up a provider by id in the full catalogue.
func (s State) Provider(id string) (Provider, bool) {
	p, ok := s.allProviderListByKey[id]
	return p, ok
}

// ProviderFor resolves a provider id for display. Ids missing from the full
// catalogue fall back to the providers derived from model rows, then to a
// placeholder.
func (s State) ProviderFor(id string) Provider {
	if p, ok := s.allProviderListByKey[id]; ok {
		return p
	}
	if p, ok := s.providerListByKey[id]; ok {
		return p
	}
	return PlaceholderProvider(id)
}

// Snapshot is the serialisable form of a State.
type Snapshot struct {
	CurrentModel         Model               `json:"currentModel"`
	ProviderList         []Provider          `json:"providerList"`
	ProviderListByKey    map[string]Provider `json:"providerListByKey"`
	AllProviderList      []Provider          `json:"allProviderList"`
	AllProviderListByKey map[string]Provider `json:"allProviderListByKey"`
	ModelList            []Model             `json:"modelList"`
	ModelListByKey       map[string]Model    `json:"modelListByKey"`
	ModelListRealID      []ModelRealID       `json:"modelListRealId"`
	IsPending            bool                `json:"isPending"`
}

// Snapshot copies s into its serialisable form. Empty lists encode as [] rather than null.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		CurrentModel:         s.currentModel,
		ProviderList:         append([]Provider{}, s.providerList...),
		ProviderListByKey:    copyMap(s.providerListByKey),
		AllProviderList:      append([]Provider{}, s.allProviderList...),
		AllProviderListByKey: copyMap(s.allProviderListByKey),
		ModelList:            append([]Model{}, s.modelList...),
		ModelListByKey:       copyMap(s.modelListByKey),
		ModelListRealID:      append([]ModelRealID{}, s.modelListRealID...),
		IsPending:            s.pending,
	}
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
