// Package keychain keeps provider credentials in the OS credential store so
// they never have to be written to the config file.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our namespace in the credential store.
const ServiceName = "insightloom"

// ErrNotFound is returned when no credential is stored for a provider.
var ErrNotFound = errors.New("no credential stored")

// Store reads and writes one API key per provider.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// New wraps an already opened keyring. Tests pass keyring.NewArrayKeyring.
func New(ring keyring.Keyring) *Store { return &Store{ring: ring} }

// Open opens the native credential store for this OS.
func Open() (*Store, error) {
	var backends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		backends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: backends,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return New(ring), nil
}

func itemKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "_api_key"
}

// SetAPIKey stores key for provider, replacing any previous value.
func (s *Store) SetAPIKey(provider, key string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Set(keyring.Item{
		Key:         itemKey(provider),
		Data:        []byte(strings.TrimSpace(key)),
		Label:       ServiceName + " " + provider + " API key",
		Description: "API key used by insightloom",
	})
}

// APIKey returns the stored key for provider or ErrNotFound.
func (s *Store) APIKey(provider string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.ring.Get(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// DeleteAPIKey removes the stored key for provider. Missing keys are not an
// error.
func (s *Store) DeleteAPIKey(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ring.Remove(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
