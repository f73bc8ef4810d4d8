// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/stacklok/hivechat/pkg/networking"
)

// setRegistryURL validates and sets an MCP registry API URL using the provided provider
func setRegistryURL(provider Provider, registryURL string, allowPrivateRegistryIp bool) error {
	_, err := validateRegistryEndpoint(registryURL, allowPrivateRegistryIp)
	if err != nil {
		return fmt.Errorf("invalid registry URL: %w", err)
	}

	// Check for private IP addresses if not allowed
	if !allowPrivateRegistryIp {
		registryClient, err := networking.NewHttpClientBuilder().Build()
		if err != nil {
			return fmt.Errorf("failed to create HTTP client: %w", err)
		}
		_, err = registryClient.Get(registryURL)
		if err != nil && strings.Contains(fmt.Sprint(err), networking.ErrPrivateIpAddress) {
			return err
		}
	}

	// Update the configuration
	err = provider.UpdateConfig(func(c *Config) {
		c.Registry.APIURL = registryURL
		c.Registry.AllowPrivateIp = allowPrivateRegistryIp
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}

	return nil
}

// setSmitheryURL validates and sets the Smithery registry URL using the provided provider
func setSmitheryURL(provider Provider, smitheryURL string) error {
	parsed, err := validateRegistryEndpoint(smitheryURL, true)
	if err != nil {
		return fmt.Errorf("invalid Smithery URL: %w", err)
	}

	// Plain HTTP is only acceptable for local development registries.
	if parsed.Scheme == networking.HttpScheme && !networking.IsLocalhost(parsed.Host) {
		return fmt.Errorf("smithery URL must use https unless it points at localhost")
	}

	err = provider.UpdateConfig(func(c *Config) {
		c.Registry.SmitheryURL = smitheryURL
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}

	return nil
}

// unsetRegistry resets registry configuration to defaults using the provided provider
func unsetRegistry(provider Provider) error {
	err := provider.UpdateConfig(func(c *Config) {
		c.Registry.APIURL = DefaultRegistryAPIURL
		c.Registry.SmitheryURL = DefaultSmitheryURL
		c.Registry.AllowPrivateIp = false
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	return nil
}

// setServersFile validates and sets the MCP server definition file using the provided provider
func setServersFile(provider Provider, path string) error {
	absPath, err := validateServersFile(path)
	if err != nil {
		return fmt.Errorf("servers file %s: %w", path, err)
	}

	err = provider.UpdateConfig(func(c *Config) {
		c.ServersFile = absPath
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}

	return nil
}
