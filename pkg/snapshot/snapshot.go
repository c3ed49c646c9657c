// Package snapshot provides a generic JSON-backed prior-snapshot store,
// shared by the process and network diff collectors (spec.md §4.5/§4.6).
// Both collectors need the same shape of behavior: load whatever was
// persisted last tick (treating "missing" and "corrupt" as empty), diff
// against the fresh snapshot, then atomically overwrite the file with the
// new snapshot.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Store persists a single JSON document of type T at a fixed path.
type Store[T any] struct {
	fs   afero.Fs
	path string
	log  *zap.Logger
}

// NewStore creates a Store rooted at path on fs, creating parent
// directories as needed.
func NewStore[T any](fs afero.Fs, path string, log *zap.Logger) (*Store[T], error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &Store[T]{fs: fs, path: path, log: log}, nil
}

// Load decodes the persisted snapshot into a zero value of T. A missing
// file or corrupt JSON both yield the zero value, per spec.md §7
// ("Prior-snapshot missing or corrupt: treated as empty prior").
func (s *Store[T]) Load() T {
	var value T

	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil || len(raw) == 0 {
		return value
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		s.log.Warn("prior snapshot corrupt, starting from empty prior", zap.String("path", s.path), zap.Error(err))
		var empty T
		return empty
	}

	return value
}

// Save atomically overwrites the persisted snapshot with value.
func (s *Store[T]) Save(value T) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing temp snapshot file: %w", err)
	}

	return s.fs.Rename(tmp, s.path)
}
