// Package secrets stores the Gemini API key and per-server bearer tokens,
// preferring the system keychain and falling back to a private JSON file.
package secrets

import (
	"errors"
	"os"
	"strings"
)

// Well-known secret names.
const (
	// GeminiAPIKey is the keychain entry consulted after the environment.
	GeminiAPIKey = "gemini-api-key"

	// GoogleAPIKeyEnv is checked after the configured API key variable.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
)

// ErrNotFound is returned by Get when no secret is stored under the name.
var ErrNotFound = errors.New("secret not found")

// Store persists named secrets.
type Store interface {
	// Get returns the secret stored under name, or ErrNotFound.
	Get(name string) (string, error)

	// Set stores or replaces a secret.
	Set(name, value string) error

	// Delete removes a secret. Deleting a missing secret is not an error.
	Delete(name string) error

	// List returns the names of all stored secrets.
	List() ([]string, error)
}

// Mode selects the backing store.
type Mode string

const (
	// ModeAuto uses the keyring if available, falls back to file.
	ModeAuto Mode = "auto"

	// ModeKeyring uses the system keychain.
	ModeKeyring Mode = "keyring"

	// ModeFile uses a JSON file.
	ModeFile Mode = "file"
)

// NewStore creates a secret store for mode.
func NewStore(mode Mode) (Store, error) {
	switch mode {
	case ModeKeyring:
		return NewKeyringStore()

	case ModeFile:
		return NewFileStore()

	default:
		store, err := NewKeyringStore()
		if err == nil {
			return store, nil
		}
		return NewFileStore()
	}
}

// BearerTokenName returns the secret name for a server's bearer token.
func BearerTokenName(serverURL string) string {
	return "bearer:" + strings.TrimRight(serverURL, "/")
}

// Source reports where a resolved secret came from.
type Source string

const (
	SourceEnv   Source = "env"
	SourceStore Source = "store"
)

// ResolveAPIKey looks up the Gemini API key: the environment variable named
// by envVar, then GOOGLE_API_KEY, then the store. A nil store skips the last
// step. It returns ErrNotFound when none of them has a value.
func ResolveAPIKey(envVar string, store Store) (key string, source Source, err error) {
	for _, name := range []string{envVar, GoogleAPIKeyEnv} {
		if name == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, SourceEnv, nil
		}
	}

	if store == nil {
		return "", "", ErrNotFound
	}
	v, err := store.Get(GeminiAPIKey)
	if err != nil {
		return "", "", err
	}
	return v, SourceStore, nil
}
