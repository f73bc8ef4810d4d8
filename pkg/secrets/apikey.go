// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/logger"
)

const (
	// SmitheryAPIKeyName is the keyring entry name for the Smithery registry key.
	SmitheryAPIKeyName = "smithery-api-key"

	// APIKeyEnvVar overrides any stored Smithery API key.
	APIKeyEnvVar = "HIVECHAT_SMITHERY_API_KEY"
)

// Storage location names reported by SetSmitheryAPIKey.
const (
	LocationKeyring = "keyring"
	LocationConfig  = "config file"
)

// defaultProvider is the keyring backend used by the package-level
// functions. Replaced in tests.
var defaultProvider Provider = NewSystemProvider()

// GetSmitheryAPIKey resolves the Smithery registry API key. Precedence:
// environment variable, OS keyring, config file. An empty string means no
// key is configured.
func GetSmitheryAPIKey(cfg *config.Config) string {
	if key := os.Getenv(APIKeyEnvVar); key != "" {
		return key
	}

	key, err := defaultProvider.Get(keyringService, SmitheryAPIKeyName)
	if err == nil && key != "" {
		return key
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Debugf("keyring lookup failed, falling back to config: %v", err)
	}

	if cfg != nil {
		return cfg.Registry.APIKey
	}
	return ""
}

// SetSmitheryAPIKey stores the Smithery registry API key, preferring the OS
// keyring. When no keyring service is available the key is written to the
// config file instead. Returns where the key was stored.
func SetSmitheryAPIKey(provider config.Provider, key string) (string, error) {
	if key == "" {
		return "", errors.New("API key cannot be empty")
	}

	if defaultProvider.IsAvailable() {
		if err := defaultProvider.Set(keyringService, SmitheryAPIKeyName, key); err != nil {
			return "", fmt.Errorf("failed to store API key in keyring: %w", err)
		}

		// Drop any plain text copy left behind by an earlier fallback.
		if provider.GetConfig().Registry.APIKey != "" {
			err := provider.UpdateConfig(func(c *config.Config) {
				c.Registry.APIKey = ""
			})
			if err != nil {
				logger.Warnf("failed to remove API key from config file: %v", err)
			}
		}

		return LocationKeyring, nil
	}

	logger.Warnf("no OS keyring available, storing API key in the config file")
	err := provider.UpdateConfig(func(c *config.Config) {
		c.Registry.APIKey = key
	})
	if err != nil {
		return "", fmt.Errorf("failed to store API key in config: %w", err)
	}

	return LocationConfig, nil
}

// RemoveSmitheryAPIKey deletes the Smithery registry API key from both the
// keyring and the config file. Missing entries are not an error.
func RemoveSmitheryAPIKey(provider config.Provider) error {
	if err := defaultProvider.Delete(keyringService, SmitheryAPIKeyName); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to remove API key from keyring: %w", err)
	}

	if provider.GetConfig().Registry.APIKey == "" {
		return nil
	}

	err := provider.UpdateConfig(func(c *config.Config) {
		c.Registry.APIKey = ""
	})
	if err != nil {
		return fmt.Errorf("failed to remove API key from config: %w", err)
	}

	return nil
}

// ReadPassword reads a secret value from stdin without echoing it.
func ReadPassword() ([]byte, error) {
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	// Start new line after receiving the value so errors print correctly.
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read value: %w", err)
	}

	if len(value) == 0 {
		return nil, errors.New("value cannot be empty")
	}
	return value, nil
}
