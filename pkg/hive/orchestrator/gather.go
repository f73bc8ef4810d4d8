// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/networking"
)

// Sources configures the descriptor sources Gather draws from beyond the
// installed-server store. All sources are additive; nothing is deduplicated
// across them.
type Sources struct {
	// ScriptPaths are explicit local server scripts, connected over stdio.
	ScriptPaths []string

	// URLs are explicit network servers. A path ending in /sse selects the
	// SSE transport, anything else streamable HTTP.
	URLs []string

	// ConfigPath is an extra mcpServers document to parse.
	ConfigPath string

	// AutoDiscover probes other MCP clients' configuration files.
	AutoDiscover bool
}

// Gather assembles connection descriptors from every configured source:
// enabled installed servers, explicit scripts and URLs, a parsed config
// file, and auto-discovered entries. A failing source degrades to a warning
// and contributes nothing. Duplicate identities across sources are kept as
// distinct connection attempts.
func (o *Orchestrator) Gather(ctx context.Context) []hive.ServerDescriptor {
	var descs []hive.ServerDescriptor

	if o.cfg != nil {
		installed, err := o.cfg.InstalledServers()
		if err != nil {
			logger.Warnf("Failed to load installed servers: %v", err)
		}
		for _, desc := range installed {
			if !desc.Enabled {
				logger.Debugf("Skipping disabled server %s", desc.Identity)
				continue
			}
			if desc.Source == "" {
				desc.Source = hive.SourceInstalled
			}
			logger.Infof("Found installed server %s", desc.Identity)
			descs = append(descs, desc)
		}
	}

	for _, path := range o.sources.ScriptPaths {
		// A URL passed through the script flag is a common slip; route it
		// to the URL source instead of failing at spawn time.
		if networking.IsURL(path) {
			desc := urlDescriptor(path)
			logger.Infof("Found server URL %s (%s)", path, desc.Transport)
			descs = append(descs, desc)
			continue
		}
		logger.Infof("Found server script %s", path)
		descs = append(descs, scriptDescriptor(path))
	}

	for _, rawURL := range o.sources.URLs {
		desc := urlDescriptor(rawURL)
		logger.Infof("Found server URL %s (%s)", rawURL, desc.Transport)
		descs = append(descs, desc)
	}

	if o.sources.ConfigPath != "" {
		parsed, err := o.parseConfig(o.sources.ConfigPath)
		if err != nil {
			logger.Warnf("Failed to parse server config %s: %v", o.sources.ConfigPath, err)
		}
		for _, desc := range parsed {
			if !desc.Enabled {
				logger.Debugf("Skipping disabled server %s from %s", desc.Identity, o.sources.ConfigPath)
				continue
			}
			if desc.Source == "" {
				desc.Source = hive.SourceConfigFile
			}
			logger.Infof("Found server %s in %s", desc.Identity, o.sources.ConfigPath)
			descs = append(descs, desc)
		}
	}

	if o.sources.AutoDiscover {
		for _, desc := range o.discover(ctx) {
			if desc.Source == "" {
				desc.Source = hive.SourceDiscovered
			}
			logger.Infof("Auto-discovered server %s", desc.Identity)
			descs = append(descs, desc)
		}
	}

	return descs
}

// scriptDescriptor builds a stdio descriptor for a local server script. The
// identity is the file stem, so /srv/weather.py namespaces its tools under
// "weather.".
func scriptDescriptor(path string) hive.ServerDescriptor {
	base := filepath.Base(path)
	return hive.ServerDescriptor{
		Identity:  strings.TrimSuffix(base, filepath.Ext(base)),
		Transport: hive.TransportStdio,
		LocalPath: path,
		Enabled:   true,
		Source:    hive.SourceScript,
	}
}

// urlDescriptor builds a network descriptor for an explicit server URL. The
// transport comes from the path suffix and the identity from the host, so
// tools from http://localhost:8000/sse land under "localhost:8000.".
func urlDescriptor(rawURL string) hive.ServerDescriptor {
	transport := hive.TransportStreamableHTTP
	identity := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		identity = parsed.Host
		// The transport hint lives in the path; query strings and
		// fragments never carry it.
		if strings.HasSuffix(strings.TrimSuffix(parsed.Path, "/"), "/sse") {
			transport = hive.TransportSSE
		}
	}

	return hive.ServerDescriptor{
		Identity:  identity,
		Transport: transport,
		URL:       rawURL,
		Enabled:   true,
		Source:    hive.SourceURL,
	}
}
