// Package offset persists per-log-source byte offsets so the tail
// collector neither replays nor loses lines across restarts.
package offset

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Manager is the offset store described in spec.md §4.2. All reads and
// writes are serialized behind a mutex; persistence is an atomic
// write-to-temp-then-rename so a crash mid-write never corrupts the file
// in place.
type Manager struct {
	fs   afero.Fs
	path string
	log  *zap.Logger

	mu      sync.Mutex
	offsets map[string]int64
}

// NewManager loads (or initializes) the offset file at path on fs. A
// missing or corrupt file is treated as an empty mapping, per spec.md §7.
func NewManager(fs afero.Fs, path string, log *zap.Logger) (*Manager, error) {
	m := &Manager{fs: fs, path: path, log: log, offsets: map[string]int64{}}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		// File does not exist yet: start empty, first Save creates it.
		return m, nil
	}

	if len(raw) == 0 {
		return m, nil
	}

	if err := json.Unmarshal(raw, &m.offsets); err != nil {
		log.Warn("offset file corrupt, starting from empty mapping", zap.String("path", path), zap.Error(err))
		m.offsets = map[string]int64{}
	}

	return m, nil
}

// Get returns the stored offset for source, defaulting to 0.
func (m *Manager) Get(source string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsets[source]
}

// Set updates the in-memory offset for source without persisting it.
func (m *Manager) Set(source string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[source] = value
}

// Reset zeroes the offset for source and persists immediately.
func (m *Manager) Reset(source string) error {
	m.mu.Lock()
	m.offsets[source] = 0
	m.mu.Unlock()
	return m.Save()
}

// ResetAll clears every stored offset and persists immediately.
func (m *Manager) ResetAll() error {
	m.mu.Lock()
	m.offsets = map[string]int64{}
	m.mu.Unlock()
	return m.Save()
}

// Save flushes the current offsets to disk atomically.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Manager) save() error {
	raw, err := json.MarshalIndent(m.offsets, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling offsets: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing temp offset file: %w", err)
	}

	if err := m.fs.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("renaming offset file: %w", err)
	}

	return nil
}
