package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const idKey = "device_id"

// Store is a small persisted key/value file for device-local settings, the
// stand-in for the platform's user-defaults store. Values survive restarts.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// Open loads the store at path, creating an empty one if the file is absent.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("device store: read: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("device store: parse: %w", err)
	}
	return s, nil
}

// Get returns the stored value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores key=value and persists the whole file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

// Delete removes key and persists the whole file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return s.flush()
}

func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("device store: mkdir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// EnsureID returns the device's fallback identifier, generating and
// persisting one on first run. Read once at startup, written once if absent.
func (s *Store) EnsureID() (string, error) {
	if id, ok := s.Get(idKey); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := s.Set(idKey, id); err != nil {
		return "", err
	}
	return id, nil
}
