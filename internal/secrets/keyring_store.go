package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the system keychain.
	keyringService = "mcpbridge"

	// keyringIndexKey is the key holding the list of stored secret names.
	// Keychains have no portable enumeration API.
	keyringIndexKey = "_index"
)

// KeyringStore stores secrets in the system keychain.
type KeyringStore struct {
	mu sync.RWMutex
}

// NewKeyringStore creates a keyring-backed store.
// Returns an error if the keyring is not available.
func NewKeyringStore() (*KeyringStore, error) {
	_, err := keyring.Get(keyringService, "_test_availability")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	return &KeyringStore{}, nil
}

// Get retrieves a secret by name.
func (s *KeyringStore) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := keyring.Get(keyringService, nameToKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return v, nil
}

// Set stores a secret and records its name in the index.
func (s *KeyringStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(keyringService, nameToKey(name), value); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return s.addToIndex(name)
}

// Delete removes a secret.
func (s *KeyringStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(keyringService, nameToKey(name)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return s.removeFromIndex(name)
}

// List returns the names of stored secrets. Index entries whose secret has
// since vanished from the keychain are skipped.
func (s *KeyringStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	present := make([]string, 0, len(names))
	for _, name := range names {
		if _, err := keyring.Get(keyringService, nameToKey(name)); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("keyring get %s: %w", name, err)
		}
		present = append(present, name)
	}
	return present, nil
}

// loadIndex reads the list of stored names (caller must hold lock).
func (s *KeyringStore) loadIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("keyring get index: %w", err)
	}
	if data == "" {
		return []string{}, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return names, nil
}

// saveIndex writes the list of stored names (caller must hold lock).
func (s *KeyringStore) saveIndex(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("keyring set index: %w", err)
	}
	return nil
}

// addToIndex adds a name to the index (caller must hold lock).
func (s *KeyringStore) addToIndex(name string) error {
	names, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return s.saveIndex(append(names, name))
}

// removeFromIndex removes a name from the index (caller must hold lock).
func (s *KeyringStore) removeFromIndex(name string) error {
	names, err := s.loadIndex()
	if err != nil {
		return err
	}

	filtered := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	return s.saveIndex(filtered)
}

// nameToKey converts a secret name to a keyring key. Server URLs appear in
// bearer token names and are flattened.
func nameToKey(name string) string {
	key := strings.ReplaceAll(name, "://", "_")
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, ":", "_")
	return key
}
