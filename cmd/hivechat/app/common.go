// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"

	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/hive/orchestrator"
	"github.com/stacklok/hivechat/pkg/hub"
	"github.com/stacklok/hivechat/pkg/registry"
	"github.com/stacklok/hivechat/pkg/secrets"
)

// Output format constants shared by commands with a --format flag.
const (
	// FormatJSON is the JSON output format
	FormatJSON = "json"
	// FormatText is the text output format
	FormatText = "text"
)

// orchestratorConfig adapts the application config and the server definition
// store to the orchestrator's read-only view.
type orchestratorConfig struct {
	cfg   *config.Config
	store *hub.Store
}

func (p *orchestratorConfig) InstalledServers() ([]hive.ServerDescriptor, error) {
	return p.store.Servers()
}

func (p *orchestratorConfig) RegistryAPIKey() string {
	return secrets.GetSmitheryAPIKey(p.cfg)
}

// serversFilePath resolves the server definition file: an explicit flag wins,
// then the configured override, then the default location.
func serversFilePath(cfg *config.Config, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.ServersFile
}

// buildOrchestrator wires an orchestrator from the loaded config and the
// extra sources given on the command line.
func buildOrchestrator(cfg *config.Config, serversFile string, sources orchestrator.Sources) (*orchestrator.Orchestrator, error) {
	store, err := hub.NewStore(serversFilePath(cfg, serversFile))
	if err != nil {
		return nil, err
	}

	return orchestrator.New(orchestrator.Options{
		Config:       &orchestratorConfig{cfg: cfg, store: store},
		Sources:      sources,
		RegistryHost: registry.SmitheryHost,
	}), nil
}

// applyPersistedToolStatus replays the per-tool enablement remembered in the
// config onto a freshly aggregated catalog. Names that no longer exist are
// ignored; they are dropped the next time the map is persisted.
func applyPersistedToolStatus(orch *orchestrator.Orchestrator, cfg *config.Config) {
	for name, enabled := range cfg.EnabledTools {
		if enabled {
			continue
		}
		if err := orch.SetToolStatus(name, false); err != nil && !errors.Is(err, hive.ErrNotFound) {
			fmt.Printf("Warning: could not disable tool %s: %v\n", name, err)
		}
	}
}

// persistToolStatus writes the catalog's current enabled map back to the
// config, replacing any stale entries.
func persistToolStatus(orch *orchestrator.Orchestrator) error {
	enabled := orch.Enabled()
	return config.UpdateConfig(func(c *config.Config) {
		c.EnabledTools = enabled
	})
}
