// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package secrets stores small credentials such as registry API keys. It
// prefers the OS keyring and falls back to the config file on systems
// without a keyring service.
package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name under which all hivechat entries are
// stored in the OS keyring.
const keyringService = "hivechat"

// ErrNotFound indicates that the requested secret was not found.
var ErrNotFound = errors.New("secret not found")

// Provider defines the interface for keyring backends
type Provider interface {
	// Set stores a key-value pair in the keyring
	Set(service, key, value string) error

	// Get retrieves a value from the keyring
	Get(service, key string) (string, error)

	// Delete removes a specific key from the keyring
	Delete(service, key string) error

	// IsAvailable tests if this keyring backend is functional
	IsAvailable() bool

	// Name returns a human-readable name for this backend
	Name() string
}

// systemProvider implements Provider using the platform keyring (Keychain,
// Windows Credential Manager, Secret Service).
type systemProvider struct{}

// NewSystemProvider returns the platform keyring provider.
func NewSystemProvider() Provider {
	return &systemProvider{}
}

func (*systemProvider) Set(service, key, value string) error {
	return keyring.Set(service, key, value)
}

func (*systemProvider) Get(service, key string) (string, error) {
	value, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, err
}

func (*systemProvider) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (*systemProvider) IsAvailable() bool {
	testKey := generateUniqueTestKey()

	// Try to set a test value
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}

	// Clean up the test value
	_ = keyring.Delete(keyringService, testKey)

	return true
}

func (*systemProvider) Name() string {
	return "OS Keyring"
}

// generateUniqueTestKey creates a unique key name used for keyring
// availability checks. It combines a timestamp and random bytes to prevent
// naming collisions when multiple checks run concurrently.
func generateUniqueTestKey() string {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("hivechat-keyring-test-%d", time.Now().UnixNano())
	}

	return fmt.Sprintf("hivechat-keyring-test-%d-%x", time.Now().UnixNano(), randomBytes)
}
