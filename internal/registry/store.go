// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Store is the single mutable holder of a catalogue State. Writers are
// serialised, so each reducer runs to completion against the latest State
// before the next one starts. Readers get immutable snapshots.
type Store struct {
	mutex *sync.RWMutex
	state State

	subMu       sync.Mutex
	subscribers map[int]chan State
	nextSubID   int
}

// NewStore creates a store holding NewState.
func NewStore() *Store {
	return &Store{
		mutex:       &sync.RWMutex{},
		state:       NewState(),
		subscribers: make(map[int]chan State),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// Update applies fn to the current State, stores the result, and notifies
// subscribers. It returns the new State.
func (s *Store) Update(fn func(State) State) State {
	s.mutex.Lock()
	next := fn(s.state)
	s.state = next
	s.publish(next)
	s.mutex.Unlock()
	return next
}

// Subscribe registers for change notifications. The channel holds at most one
// pending State; a slow reader only ever sees the newest one. Call the returned
// function to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with s.mutex held so notifications keep update order.
func (s *Store) publish(next State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// InitProviders replaces the provider catalogue.
func (s *Store) InitProviders(providers []Provider) {
	s.Update(func(st State) State { return InitProviders(st, providers) })
	log.Debugf("Initialized %d providers", len(providers))
}

// InitModels replaces the model list from data-access rows and clears the pending flag.
func (s *Store) InitModels(rows []ModelRow) {
	s.Update(func(st State) State {
		st = InitModels(st, rows)
		st = InitModelRealIDs(st, rows)
		return SetPending(st, false)
	})
	log.Debugf("Initialized %d models", len(rows))
}

// SetModelList replaces the model order.
func (s *Store) SetModelList(models []Model) State {
	return s.Update(func(st State) State { return SetModelList(st, models) })
}

// SetAllProviderList replaces the provider order.
func (s *Store) SetAllProviderList(providers []Provider) State {
	return s.Update(func(st State) State { return SetAllProviderList(st, providers) })
}

// Select switches the current model by id.
func (s *Store) Select(modelID string) (State, Selection) {
	var result Selection
	next := s.Update(func(st State) State {
		st, result = SetSelection(st, modelID)
		return st
	})
	if !result.Found() {
		log.Debugf("Selection of model %s found nothing, keeping %s", modelID, next.CurrentModel().ID)
	}
	return next, result
}

// SelectExact switches the current model by provider and model id.
func (s *Store) SelectExact(providerID, modelID string) (State, Selection) {
	var result Selection
	next := s.Update(func(st State) State {
		st, result = SetSelectionExact(st, providerID, modelID)
		return st
	})
	if !result.Found() {
		log.Debugf("Selection of model %s/%s found nothing, keeping %s", providerID, modelID, next.CurrentModel().ID)
	}
	return next, result
}

// AddProvider adds or replaces a provider.
func (s *Store) AddProvider(p Provider) State {
	log.Debugf("Adding provider %s", p.ID)
	return s.Update(func(st State) State { return AddProvider(st, p) })
}

// RenameProvider renames a provider.
func (s *Store) RenameProvider(providerID, name string) State {
	return s.Update(func(st State) State { return RenameProvider(st, providerID, name) })
}

// ToggleProvider sets a provider's status.
func (s *Store) ToggleProvider(providerID string, status bool) State {
	return s.Update(func(st State) State { return ToggleProvider(st, providerID, status) })
}

// DeleteProvider removes a provider.
func (s *Store) DeleteProvider(providerID string) State {
	log.Debugf("Deleting provider %s", providerID)
	return s.Update(func(st State) State { return DeleteProvider(st, providerID) })
}

// AddModel adds or replaces a model.
func (s *Store) AddModel(m Model) State {
	log.Debugf("Adding model %s from provider %s", m.ID, m.Provider.ID)
	return s.Update(func(st State) State { return AddModel(st, m) })
}

// UpdateModel merges patch into a model.
func (s *Store) UpdateModel(modelID string, patch ModelPatch) State {
	return s.Update(func(st State) State { return UpdateModel(st, modelID, patch) })
}

// DeleteModel removes a model.
func (s *Store) DeleteModel(modelID string) State {
	log.Debugf("Deleting model %s", modelID)
	return s.Update(func(st State) State { return DeleteModel(st, modelID) })
}

// SetSelected enables or disables a model in the picker.
func (s *Store) SetSelected(modelID string, selected bool) State {
	return s.Update(func(st State) State { return SetSelected(st, modelID, selected) })
}
