// Package store persists a flat JSON key/value document merged against a
// defaults document. Reads always go to disk; nothing is cached.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// Store is a JSON document on disk with defaults-merge semantics.
type Store struct {
	path     string
	defaults map[string]any
	logger   *slog.Logger

	mu sync.Mutex // serializes read-modify-write cycles
}

// LoadDefaults decodes a defaults document (typically embedded in the binary).
func LoadDefaults(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// New opens the store at path. If the file does not exist it is created
// holding the defaults.
func New(path string, defaults map[string]any, logger *slog.Logger) (*Store, error) {
	if defaults == nil {
		defaults = map[string]any{}
	}
	s := &Store{
		path:     path,
		defaults: defaults,
		logger:   logger.With("store", filepath.Base(path)),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(s.Defaults()); err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Defaults returns a copy of the defaults document.
func (s *Store) Defaults() map[string]any {
	return maps.Clone(s.defaults)
}

// Load returns the stored document. Any read or decode failure is logged and
// a copy of the defaults is returned instead.
func (s *Store) Load() map[string]any {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("store read failed, using defaults", "error", err)
		return s.Defaults()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		s.logger.Warn("store decode failed, using defaults", "error", err)
		return s.Defaults()
	}
	return m
}

// Get returns the value stored under key, or def when absent.
func (s *Store) Get(key string, def any) any {
	if v, ok := s.Load()[key]; ok {
		return v
	}
	return def
}

// GetString returns key as a string, or def when absent or not a string.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.Get(key, nil).(string); ok {
		return v
	}
	return def
}

// GetInt returns key as an int. JSON numbers decode as float64.
func (s *Store) GetInt(key string, def int) int {
	switch v := s.Get(key, nil).(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// GetStrings returns key as a string slice, skipping non-string elements.
func (s *Store) GetStrings(key string, def []string) []string {
	raw, ok := s.Get(key, nil).([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Save merges partial into the stored document and writes the result.
// Keys not named in partial keep their stored values.
func (s *Store) Save(partial map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Load()
	maps.Copy(current, partial)
	if err := s.write(current); err != nil {
		s.logger.Error("store save failed", "error", err)
		return s.Defaults(), err
	}
	s.logger.Debug("store saved", "keys", len(partial))
	return current, nil
}

// Set stores a single key.
func (s *Store) Set(key string, value any) (map[string]any, error) {
	return s.Save(map[string]any{key: value})
}

// Reset restores keys to their defaults. With no keys the whole document is
// replaced by the defaults. A key missing from the defaults is deleted; reset
// never introduces keys the defaults do not define.
func (s *Store) Reset(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		if err := s.write(s.Defaults()); err != nil {
			return fmt.Errorf("reset all: %w", err)
		}
		s.logger.Info("store reset to defaults")
		return nil
	}

	current := s.Load()
	for _, k := range keys {
		if def, ok := s.defaults[k]; ok {
			current[k] = def
			s.logger.Info("store key reset", "key", k)
		} else if _, ok := current[k]; ok {
			delete(current, k)
			s.logger.Info("store key not in defaults, deleted", "key", k)
		} else {
			s.logger.Debug("store key not found", "key", k)
		}
	}
	if err := s.write(current); err != nil {
		return fmt.Errorf("reset keys: %w", err)
	}
	return nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *Store) write(m map[string]any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
