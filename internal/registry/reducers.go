// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

// Selection reports the outcome of SetSelection and SetSelectionExact.
type Selection int

const (
	// NotFound means no model matched; the state was left unchanged.
	NotFound Selection = iota
	// Selected means the current model was switched.
	Selected
	// AlreadyCurrent means the requested model was already the current one.
	AlreadyCurrent
)

// Found reports whether the requested model is now the current model.
func (s Selection) Found() bool { return s != NotFound }

func (s Selection) String() string {
	switch s {
	case Selected:
		return "selected"
	case AlreadyCurrent:
		return "already_current"
	default:
		return "not_found"
	}
}

// InitProviders replaces the full provider catalogue and rebuilds its index.
func InitProviders(s State, providers []Provider) State {
	s.allProviderList, s.allProviderListByKey = indexProviders(providers)
	return s
}

// SetAllProviderList replaces the provider catalogue order. The index is rebuilt
// with it so lookups never see entries that left the list.
func SetAllProviderList(s State, providers []Provider) State {
	return InitProviders(s, providers)
}

// InitModels replaces the model list with the given rows and derives the
// provider list from them. Providers keep the order in which they first appear;
// the last row for a provider decides its name and logo.
func InitModels(s State, rows []ModelRow) State {
	models := make([]Model, 0, len(rows))
	for _, row := range rows {
		models = append(models, row.Model())
	}
	s.providerList, s.providerListByKey = providersFromRows(rows)
	s.modelList, s.modelListByKey = indexModels(models)
	s.currentModel = refreshCurrent(s)
	return s
}

// InitModelRealIDs replaces the database-id view of the models and the derived provider list.
func InitModelRealIDs(s State, rows []ModelRow) State {
	realIDs := make([]ModelRealID, 0, len(rows))
	for _, row := range rows {
		realIDs = append(realIDs, row.RealID())
	}
	s.modelListRealID = realIDs
	s.providerList, s.providerListByKey = providersFromRows(rows)
	return s
}

// SetModelList replaces the model list, typically with a reordered copy, and rebuilds the index.
func SetModelList(s State, models []Model) State {
	s.modelList, s.modelListByKey = indexModels(models)
	s.currentModel = refreshCurrent(s)
	return s
}

// SetPending records whether the initial load is still outstanding.
func SetPending(s State, pending bool) State {
	s.pending = pending
	return s
}

// SetSelection makes modelID the current model. The index is consulted first and
// the ordered list second. When neither holds the id the state is returned unchanged.
func SetSelection(s State, modelID string) (State, Selection) {
	if s.currentModel.ID == modelID {
		return s, AlreadyCurrent
	}
	if m, ok := s.modelListByKey[modelID]; ok {
		s.currentModel = m
		return s, Selected
	}
	for _, m := range s.modelList {
		if m.ID == modelID {
			s.currentModel = m
			return s, Selected
		}
	}
	return s, NotFound
}

// SetSelectionExact is SetSelection restricted to models owned by providerID.
func SetSelectionExact(s State, providerID, modelID string) (State, Selection) {
	if s.currentModel.ID == modelID && s.currentModel.Provider.ID == providerID {
		return s, AlreadyCurrent
	}
	if m, ok := s.modelListByKey[modelID]; ok && m.Provider.ID == providerID {
		s.currentModel = m
		return s, Selected
	}
	for _, m := range s.modelList {
		if m.ID == modelID && m.Provider.ID == providerID {
			s.currentModel = m
			return s, Selected
		}
	}
	return s, NotFound
}

// AddProvider appends p to the catalogue. A provider whose id is already present
// is replaced in place.
func AddProvider(s State, p Provider) State {
	if _, exists := s.allProviderListByKey[p.ID]; exists {
		return replaceProvider(s, p.ID, func(Provider) Provider { return p })
	}
	s.allProviderList = append(append(make([]Provider, 0, len(s.allProviderList)+1), s.allProviderList...), p)
	s.allProviderListByKey = copyMap(s.allProviderListByKey)
	s.allProviderListByKey[p.ID] = p
	return s
}

// RenameProvider sets the display name of providerID.
func RenameProvider(s State, providerID, name string) State {
	return replaceProvider(s, providerID, func(p Provider) Provider {
		p.ProviderName = name
		return p
	})
}

// ToggleProvider sets the status of providerID.
func ToggleProvider(s State, providerID string, status bool) State {
	return replaceProvider(s, providerID, func(p Provider) Provider {
		p.Status = status
		return p
	})
}

// DeleteProvider removes providerID from the catalogue and its index.
func DeleteProvider(s State, providerID string) State {
	if _, exists := s.allProviderListByKey[providerID]; !exists {
		return s
	}
	list := make([]Provider, 0, len(s.allProviderList))
	for _, p := range s.allProviderList {
		if p.ID != providerID {
			list = append(list, p)
		}
	}
	index := copyMap(s.allProviderListByKey)
	delete(index, providerID)
	s.allProviderList = list
	s.allProviderListByKey = index
	return s
}

// AddModel appends m to the model list. A model whose id is already present is
// replaced in place.
func AddModel(s State, m Model) State {
	if m.Type == "" {
		m.Type = DefaultModelType
	}
	if _, exists := s.modelListByKey[m.ID]; exists {
		return replaceModel(s, m.ID, func(Model) Model { return m })
	}
	s.modelList = append(append(make([]Model, 0, len(s.modelList)+1), s.modelList...), m)
	s.modelListByKey = copyMap(s.modelListByKey)
	s.modelListByKey[m.ID] = m
	return s
}

// UpdateModel merges patch into modelID. When the patch renames the model the
// index key moves with it; a model already holding the new id is dropped.
func UpdateModel(s State, modelID string, patch ModelPatch) State {
	existing, ok := s.modelListByKey[modelID]
	if !ok {
		return s
	}
	updated := patch.apply(existing)
	if updated.ID == modelID {
		return replaceModel(s, modelID, func(Model) Model { return updated })
	}

	list := make([]Model, 0, len(s.modelList))
	for _, m := range s.modelList {
		switch m.ID {
		case modelID:
			list = append(list, updated)
		case updated.ID:
		default:
			list = append(list, m)
		}
	}
	wasCurrent := isCurrent(s, existing)
	displaced, hadDisplaced := s.modelListByKey[updated.ID]
	s.modelList, s.modelListByKey = indexModels(list)
	switch {
	case wasCurrent:
		s.currentModel = updated
	case hadDisplaced && isCurrent(s, displaced):
		s.currentModel = DefaultModel()
	}
	return s
}

// SetSelected marks modelID as enabled or disabled in the model picker.
func SetSelected(s State, modelID string, selected bool) State {
	return replaceModel(s, modelID, func(m Model) Model {
		m.Selected = selected
		return m
	})
}

// DeleteModel removes modelID from the model list and its index. Deleting the
// current model falls back to DefaultModel.
func DeleteModel(s State, modelID string) State {
	existing, ok := s.modelListByKey[modelID]
	if !ok {
		return s
	}
	list := make([]Model, 0, len(s.modelList))
	for _, m := range s.modelList {
		if m.ID != modelID {
			list = append(list, m)
		}
	}
	index := copyMap(s.modelListByKey)
	delete(index, modelID)
	if isCurrent(s, existing) {
		s.currentModel = DefaultModel()
	}
	s.modelList = list
	s.modelListByKey = index
	return s
}

func replaceProvider(s State, providerID string, fn func(Provider) Provider) State {
	existing, ok := s.allProviderListByKey[providerID]
	if !ok {
		return s
	}
	updated := fn(existing)
	list := make([]Provider, len(s.allProviderList))
	for i, p := range s.allProviderList {
		if p.ID == providerID {
			p = updated
		}
		list[i] = p
	}
	index := copyMap(s.allProviderListByKey)
	index[providerID] = updated
	s.allProviderList = list
	s.allProviderListByKey = index
	return s
}

func replaceModel(s State, modelID string, fn func(Model) Model) State {
	existing, ok := s.modelListByKey[modelID]
	if !ok {
		return s
	}
	updated := fn(existing)
	list := make([]Model, len(s.modelList))
	for i, m := range s.modelList {
		if m.ID == modelID {
			m = updated
		}
		list[i] = m
	}
	index := copyMap(s.modelListByKey)
	index[modelID] = updated
	if isCurrent(s, existing) {
		s.currentModel = updated
	}
	s.modelList = list
	s.modelListByKey = index
	return s
}

func isCurrent(s State, m Model) bool {
	return s.currentModel.ID == m.ID && s.currentModel.Provider.ID == m.Provider.ID
}

// refreshCurrent returns the catalogue's copy of the current model when the
// catalogue holds it. A current model that left the catalogue falls back to
// DefaultModel.
func refreshCurrent(s State) Model {
	if m, ok := s.modelListByKey[s.currentModel.ID]; ok && m.Provider.ID == s.currentModel.Provider.ID {
		return m
	}
	def := DefaultModel()
	if s.currentModel.ID == def.ID && s.currentModel.Provider.ID == def.Provider.ID {
		return s.currentModel
	}
	return def
}

// indexModels builds the id index for models. Duplicate ids collapse onto the
// position of the first occurrence with the value of the last one.
func indexModels(models []Model) ([]Model, map[string]Model) {
	list := make([]Model, 0, len(models))
	index := make(map[string]Model, len(models))
	position := make(map[string]int, len(models))
	for _, m := range models {
		if i, seen := position[m.ID]; seen {
			list[i] = m
		} else {
			position[m.ID] = len(list)
			list = append(list, m)
		}
		index[m.ID] = m
	}
	return list, index
}

func indexProviders(providers []Provider) ([]Provider, map[string]Provider) {
	list := make([]Provider, 0, len(providers))
	index := make(map[string]Provider, len(providers))
	position := make(map[string]int, len(providers))
	for _, p := range providers {
		if i, seen := position[p.ID]; seen {
			list[i] = p
		} else {
			position[p.ID] = len(list)
			list = append(list, p)
		}
		index[p.ID] = p
	}
	return list, index
}

func providersFromRows(rows []ModelRow) ([]Provider, map[string]Provider) {
	providers := make([]Provider, 0, len(rows))
	for _, row := range rows {
		providers = append(providers, Provider{
			ID:           row.ProviderID,
			ProviderName: row.ProviderName,
			ProviderLogo: row.ProviderLogo,
			Status:       true,
		})
	}
	return indexProviders(providers)
}
