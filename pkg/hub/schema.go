// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package hub manages the local MCP server definition file (mcp.json).
//
// The document follows the de-facto client convention: a top-level
// "mcpServers" object keyed by server name, each entry describing either a
// stdio launch (command/args/env) or a remote endpoint (url). Files are read
// leniently (comments and trailing commas are tolerated) and edited with
// JSON Patch operations so unknown fields written by other tools survive a
// round-trip untouched.
package hub

import (
	"fmt"
	"strings"

	"github.com/stacklok/hivechat/pkg/hive"
)

// AuthOAuth marks an entry as requiring the interactive OAuth flow.
const AuthOAuth = "oauth"

// ServerEntry is one server definition in the mcpServers document.
type ServerEntry struct {
	// Command, Args and Env describe a stdio server launch.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// URL points at a remote server endpoint.
	URL string `json:"url,omitempty"`

	// Type overrides the inferred transport ("stdio", "sse",
	// "streamable-http"). Optional; most files in the wild omit it.
	Type string `json:"type,omitempty"`

	// Disabled excludes the server from connection attempts without
	// removing its definition.
	Disabled bool `json:"disabled,omitempty"`

	// APIKey is a static bearer credential for the server.
	APIKey string `json:"apiKey,omitempty"`

	// Auth selects a non-bearer authentication scheme. The only recognized
	// value is "oauth".
	Auth string `json:"auth,omitempty"`

	// UserConfig carries server-specific parameters, passed through to the
	// connector opaquely.
	UserConfig map[string]any `json:"userConfig,omitempty"`
}

// Document is the parsed mcpServers file.
type Document struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
}

// Descriptor converts one named entry into a connection descriptor.
func (e ServerEntry) Descriptor(name string) (hive.ServerDescriptor, error) {
	kind, err := e.transportKind()
	if err != nil {
		return hive.ServerDescriptor{}, fmt.Errorf("server %s: %w", name, err)
	}

	desc := hive.ServerDescriptor{
		Identity:       name,
		Transport:      kind,
		UserConfig:     e.UserConfig,
		Enabled:        !e.Disabled,
		CredentialHint: e.credentialHint(),
	}
	if kind == hive.TransportStdio {
		desc.Command = e.Command
		desc.Args = e.Args
		desc.Env = e.Env
	} else {
		desc.URL = e.URL
	}

	if err := desc.Validate(); err != nil {
		return hive.ServerDescriptor{}, err
	}
	return desc, nil
}

// transportKind resolves the entry's transport: an explicit type wins,
// otherwise a URL selects a network transport (SSE when the path ends in
// /sse) and a command selects stdio.
func (e ServerEntry) transportKind() (hive.TransportKind, error) {
	if e.Type != "" {
		return hive.ParseTransportKind(e.Type)
	}
	if e.URL != "" {
		if strings.HasSuffix(strings.TrimSuffix(e.URL, "/"), "/sse") {
			return hive.TransportSSE, nil
		}
		return hive.TransportStreamableHTTP, nil
	}
	if e.Command != "" {
		return hive.TransportStdio, nil
	}
	return "", fmt.Errorf("%w: entry has neither url nor command", hive.ErrInvalidDescriptor)
}

func (e ServerEntry) credentialHint() string {
	if e.Auth == AuthOAuth {
		return hive.CredentialOAuth
	}
	return e.APIKey
}

// Descriptors converts the whole document, sorted by server name for stable
// connection order. Entries that fail conversion are reported, not dropped
// silently.
func (d Document) Descriptors() ([]hive.ServerDescriptor, []error) {
	var (
		descs []hive.ServerDescriptor
		errs  []error
	)
	for _, name := range sortedNames(d.MCPServers) {
		desc, err := d.MCPServers[name].Descriptor(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, desc)
	}
	return descs, errs
}
