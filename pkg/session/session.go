// Package session holds per-installation preferences, currently whether the
// owner has switched the UI into admin mode.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"moveout/pkg/errors"
)

// PreferencesFile is the file name used inside the data directory
const PreferencesFile = "preferences.json"

// Preferences is the persisted form
type Preferences struct {
	Admin bool `json:"admin"`
}

// Manager owns the admin flag. It is read once at startup and written only
// when explicitly toggled.
type Manager struct {
	mutex sync.RWMutex
	path  string
	prefs Preferences
}

// NewManager loads preferences from path. A missing file means admin mode is off.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return m, nil
	case err != nil:
		return nil, errors.ErrStoreIO.WithCause(err).WithContext("path", path)
	}

	if err := json.Unmarshal(data, &m.prefs); err != nil {
		// An unreadable preference file only costs the admin toggle
		log.Warn().Err(err).Str("path", path).Msg("Ignoring corrupt preferences file")
		m.prefs = Preferences{}
	}
	return m, nil
}

// IsAdmin reports whether admin mode is on
func (m *Manager) IsAdmin() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.prefs.Admin
}

// SetAdmin switches admin mode and persists the choice. On a write failure
// the previous value is kept.
func (m *Manager) SetAdmin(admin bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	next := m.prefs
	next.Admin = admin
	if err := m.save(next); err != nil {
		return err
	}
	m.prefs = next

	log.Info().Bool("admin", admin).Msg("Admin mode changed")
	return nil
}

func (m *Manager) save(prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.ErrStoreIO.WithCause(err).WithContext("path", m.path)
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return errors.ErrStoreIO.WithCause(err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.ErrStoreIO.WithCause(err).WithContext("path", m.path)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return errors.ErrStoreIO.WithCause(err).WithContext("path", m.path)
	}
	return nil
}
