// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores the CLI's secrets in the OS credential store: the
// Index Supply API key and the Postgres DSN used by the sync sink.
//
// Native stores are preferred (macOS Keychain, Windows Credential Manager,
// Secret Service, KWallet, pass). On machines without one, an encrypted file
// under the XDG state dir is used when INDEXSUPPLY_KEYRING_PASSWORD is set.
package keychain

import (
	"errors"
	"os"
	"sync"

	"github.com/99designs/keyring"

	"indexsupply/cli/internal/xdg"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "indexsupply"

// Keys used for storing secrets in the OS keychain.
const (
	KeyAPIKey = "api_key"
	KeyDBDSN  = "db_dsn"
)

// PasswordEnv unlocks the file backend.
const PasswordEnv = "INDEXSUPPLY_KEYRING_PASSWORD"

// ErrNotFound is returned when a secret has not been stored.
var ErrNotFound = errors.New("secret not found in keychain")

// Manager provides thread-safe access to the keyring.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager opens the OS keyring.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager, opening it on first use.
// A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return m, nil
}

func openRing() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		WinCredPrefix:            ServiceName,
		PassPrefix:               ServiceName,
		LibSecretCollectionName:  ServiceName,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
	}

	if pw := os.Getenv(PasswordEnv); pw != "" {
		dir, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.FileBackend)
		cfg.FileDir = dir
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(pw)
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if errors.Is(err, keyring.ErrNoAvailImpl) {
			return nil, errors.New("no credential store available; set " + PasswordEnv + " to use an encrypted file instead")
		}
		return nil, err
	}
	return ring, nil
}

func (m *Manager) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(key)
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

func (m *Manager) remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		if err := m.ring.Remove(k); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}

// SaveAPIKey stores the Index Supply API key.
func (m *Manager) SaveAPIKey(key string) error {
	if key == "" {
		return errors.New("empty api key")
	}
	return m.set(KeyAPIKey, key)
}

// LoadAPIKey returns the stored API key or ErrNotFound.
func (m *Manager) LoadAPIKey() (string, error) { return m.get(KeyAPIKey) }

// ClearAPIKey removes the API key.
func (m *Manager) ClearAPIKey() error { return m.remove(KeyAPIKey) }

// SaveDBDSN stores the database DSN in the keychain.
func (m *Manager) SaveDBDSN(dsn string) error { return m.set(KeyDBDSN, dsn) }

// LoadDBDSN returns the stored DSN or ErrNotFound.
func (m *Manager) LoadDBDSN() (string, error) { return m.get(KeyDBDSN) }

// ClearDB removes DB-related secrets from the keychain.
func (m *Manager) ClearDB() error { return m.remove(KeyDBDSN) }

// ClearAll removes all secrets from the keychain.
func (m *Manager) ClearAll() error { return m.remove(KeyAPIKey, KeyDBDSN) }
