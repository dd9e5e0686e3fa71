// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package upload

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Manager keeps one Tray per client session. Trays unused for longer than the
// idle timeout are closed, and the least recently used tray is closed when the
// session cap is reached.
type Manager struct {
	mu          sync.Mutex
	trays       map[string]*session
	maxImages   int
	maxBytes    int64
	idleTimeout time.Duration
	maxSessions int
	trayOpts    []Option
	now         func() time.Time
}

type session struct {
	tray     *Tray
	lastUsed time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithTrayOptions applies opts to every tray the manager creates.
func WithTrayOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.trayOpts = append(m.trayOpts, opts...) }
}

// WithIdleTimeout closes trays not used for d. Zero disables idle eviction.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithMaxSessions caps the number of live trays. Zero means no cap.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.maxSessions = n }
}

func withClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager whose trays share the given limits.
func NewManager(maxImages int, maxBytes int64, opts ...ManagerOption) *Manager {
	m := &Manager{
		trays:     make(map[string]*session),
		maxImages: maxImages,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tray returns the tray for session, creating it on first use.
func (m *Manager) Tray(id string) *Tray {
	m.mu.Lock()
	now := m.now()
	evicted := m.sweepLocked(now, id)
	s, ok := m.trays[id]
	if !ok {
		if m.maxSessions > 0 && len(m.trays) >= m.maxSessions {
			evicted = append(evicted, m.evictOldestLocked())
		}
		s = &session{tray: NewTray(m.maxImages, m.maxBytes, m.trayOpts...)}
		m.trays[id] = s
	}
	s.lastUsed = now
	m.mu.Unlock()

	for _, t := range evicted {
		t.Close()
	}
	return s.tray
}

// Len reports the number of live trays.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trays)
}

// sweepLocked forgets trays idle past the timeout, except keep, and returns them.
func (m *Manager) sweepLocked(now time.Time, keep string) []*Tray {
	if m.idleTimeout <= 0 {
		return nil
	}
	var evicted []*Tray
	for id, s := range m.trays {
		if id != keep && now.Sub(s.lastUsed) > m.idleTimeout {
			delete(m.trays, id)
			evicted = append(evicted, s.tray)
			log.Debugf("upload session %s idle since %s, releasing tray", id, s.lastUsed.Format(time.RFC3339))
		}
	}
	return evicted
}

func (m *Manager) evictOldestLocked() *Tray {
	var (
		oldestID string
		oldest   *session
	)
	for id, s := range m.trays {
		if oldest == nil || s.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, s
		}
	}
	delete(m.trays, oldestID)
	log.Debugf("upload session cap reached, releasing tray for %s", oldestID)
	return oldest.tray
}

// Drop closes and forgets the tray for session.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	s, ok := m.trays[id]
	delete(m.trays, id)
	m.mu.Unlock()
	if ok {
		s.tray.Close()
	}
}

// Close releases every tray.
func (m *Manager) Close() {
	m.mu.Lock()
	trays := m.trays
	m.trays = make(map[string]*session)
	m.mu.Unlock()
	for _, s := range trays {
		s.tray.Close()
	}
}
