// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

// ClientKind is an enum of MCP client applications whose configuration files
// auto-discovery knows how to read.
type ClientKind string

const (
	// ClaudeDesktop represents the Claude desktop application.
	ClaudeDesktop ClientKind = "claude-desktop"
	// Cursor represents the Cursor editor.
	Cursor ClientKind = "cursor"
	// VSCode represents the standard VS Code editor.
	VSCode ClientKind = "vscode"
	// Windsurf represents the Windsurf editor.
	Windsurf ClientKind = "windsurf"
	// Cline represents the Cline extension for VS Code.
	Cline ClientKind = "cline"
)

// clientIntegration describes where one client keeps its MCP server
// definitions and how to reach them inside the settings document.
type clientIntegration struct {
	ClientType     ClientKind
	Description    string
	SettingsFile   string
	RelPath        []string
	PlatformPrefix map[string][]string

	// ServersPath is the gjson path of the server map inside the settings
	// document. Most clients use a top-level "mcpServers" object; VS Code
	// nests it under "mcp".
	ServersPath string
}

var supportedClientIntegrations = []clientIntegration{
	{
		ClientType:   ClaudeDesktop,
		Description:  "Claude desktop app",
		SettingsFile: "claude_desktop_config.json",
		RelPath:      []string{"Claude"},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		ServersPath: "mcpServers",
	},
	{
		ClientType:   Cursor,
		Description:  "Cursor editor",
		SettingsFile: "mcp.json",
		RelPath:      []string{".cursor"},
		ServersPath:  "mcpServers",
	},
	{
		ClientType:   VSCode,
		Description:  "Visual Studio Code",
		SettingsFile: "mcp.json",
		RelPath:      []string{"Code", "User"},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		ServersPath: "servers",
	},
	{
		ClientType:   Windsurf,
		Description:  "Windsurf editor",
		SettingsFile: "mcp_config.json",
		RelPath:      []string{".codeium", "windsurf"},
		ServersPath:  "mcpServers",
	},
	{
		ClientType:   Cline,
		Description:  "VS Code Cline extension",
		SettingsFile: "cline_mcp_settings.json",
		RelPath:      []string{"Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings"},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		ServersPath: "mcpServers",
	},
}

// userHomeDir is swapped out in tests.
var userHomeDir = os.UserHomeDir

// DiscoveredServer is one server definition found in another client's
// configuration file.
type DiscoveredServer struct {
	Client ClientKind
	Name   string
	Entry  ServerEntry
}

// DiscoverServers scans the configuration files of every supported client
// and returns the server definitions found there. Missing or unreadable
// files are skipped; discovery is strictly best-effort.
func DiscoverServers() []DiscoveredServer {
	home, err := userHomeDir()
	if err != nil {
		logger.Warnf("Cannot determine home directory for client discovery: %v", err)
		return nil
	}

	var found []DiscoveredServer
	for _, cfg := range supportedClientIntegrations {
		path := buildConfigFilePath(cfg.SettingsFile, cfg.RelPath, cfg.PlatformPrefix, []string{home})
		servers, err := readClientServers(path, cfg.ServersPath)
		if err != nil {
			logger.Debugf("Skipping %s config at %s: %v", cfg.ClientType, path, err)
			continue
		}
		for _, name := range sortedNames(servers) {
			found = append(found, DiscoveredServer{
				Client: cfg.ClientType,
				Name:   name,
				Entry:  servers[name],
			})
		}
		if len(servers) > 0 {
			logger.Infof("Discovered %d MCP server(s) in %s config", len(servers), cfg.Description)
		}
	}
	return found
}

// AutoDiscover converts every discovered server definition into a connection
// descriptor. This is the orchestrator's auto-discovery source.
func AutoDiscover(_ context.Context) []hive.ServerDescriptor {
	var descs []hive.ServerDescriptor
	for _, ds := range DiscoverServers() {
		if ds.Entry.Disabled {
			logger.Debugf("Skipping disabled discovered server %s (%s)", ds.Name, ds.Client)
			continue
		}
		desc, err := ds.Entry.Descriptor(ds.Name)
		if err != nil {
			logger.Debugf("Skipping discovered server %s (%s): %v", ds.Name, ds.Client, err)
			continue
		}
		desc.Source = hive.SourceDiscovered
		descs = append(descs, desc)
	}
	return descs
}

// readClientServers extracts the server map at serversPath from the settings
// document at path. Client settings files are often JWCC (VS Code in
// particular), so the document is standardized before the gjson lookup.
func readClientServers(path, serversPath string) (map[string]ServerEntry, error) {
	data, err := os.ReadFile(path) // #nosec G304: paths come from the fixed integration table
	if err != nil {
		return nil, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}

	block := gjson.GetBytes(standardized, strings.ReplaceAll(serversPath, ".", `\.`))
	if !block.Exists() || !block.IsObject() {
		return nil, nil
	}

	servers := make(map[string]ServerEntry)
	var firstErr error
	block.ForEach(func(key, value gjson.Result) bool {
		var entry ServerEntry
		if err := json.Unmarshal([]byte(value.Raw), &entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		servers[key.String()] = entry
		return true
	})
	if len(servers) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return servers, nil
}

func buildConfigFilePath(settingsFile string, relPath []string, platformPrefix map[string][]string, path []string) string {
	if prefix, ok := platformPrefix[runtime.GOOS]; ok {
		path = append(path, prefix...)
	}
	path = append(path, relPath...)
	path = append(path, settingsFile)
	return filepath.Clean(filepath.Join(path...))
}
