// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"

	"github.com/stacklok/hivechat/pkg/fileutils"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

const (
	// serversPathPrefix is the JSON pointer to the server map inside the
	// document.
	serversPathPrefix = "/mcpServers"

	// lockTimeout is the maximum time to wait for the file lock.
	lockTimeout = 1 * time.Second
)

// DefaultPath returns the default mcp.json location, creating parent
// directories as needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("hivechat/mcp.json")
}

// Store reads and edits one mcpServers document. Edits are JSON Patch
// operations applied under a file lock and written atomically, so concurrent
// processes never observe a partial document and foreign fields survive.
type Store struct {
	path string
}

// NewStore creates a store for the document at path. An empty path selects
// the default location.
func NewStore(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("unable to resolve server definition path: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load parses the document. A missing file yields an empty document; a
// malformed one is an error. Comments and trailing commas are tolerated.
func (s *Store) Load() (Document, error) {
	doc := Document{MCPServers: map[string]ServerEntry{}}

	data, err := os.ReadFile(s.path) // #nosec G304: path is the user's own server file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if doc.MCPServers == nil {
		doc.MCPServers = map[string]ServerEntry{}
	}
	return doc, nil
}

// List returns the defined server names in sorted order.
func (s *Store) List() ([]string, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return sortedNames(doc.MCPServers), nil
}

// Get returns one server entry by name.
func (s *Store) Get(name string) (ServerEntry, error) {
	doc, err := s.Load()
	if err != nil {
		return ServerEntry{}, err
	}
	entry, ok := doc.MCPServers[name]
	if !ok {
		return ServerEntry{}, fmt.Errorf("%w: server %s", hive.ErrNotFound, name)
	}
	return entry, nil
}

// Upsert inserts or replaces a server entry, preserving every other byte of
// the document including comments and fields this tool does not know about.
func (s *Store) Upsert(name string, entry ServerEntry) error {
	return s.withFileLock(func() error {
		content, err := s.readForEdit()
		if err != nil {
			return err
		}

		content = ensurePathExists(content, serversPathPrefix)

		v, err := hujson.Parse(content)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", s.path, err)
		}

		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to serialize server entry: %w", err)
		}

		patch := fmt.Sprintf(`[{ "op": "add", "path": "%s/%s", "value": %s }]`,
			serversPathPrefix, escapePointerToken(name), entryJSON)
		if err := v.Patch([]byte(patch)); err != nil {
			return fmt.Errorf("failed to patch %s: %w", s.path, err)
		}

		return s.writeBack(v)
	})
}

// Remove deletes a server entry. Removing a name that is not defined is not
// an error.
func (s *Store) Remove(name string) error {
	return s.withFileLock(func() error {
		content, err := s.readForEdit()
		if err != nil {
			return err
		}
		if len(content) == 0 || string(content) == "{}" {
			return nil
		}

		v, err := hujson.Parse(content)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", s.path, err)
		}

		patch := fmt.Sprintf(`[{ "op": "remove", "path": "%s/%s" }]`,
			serversPathPrefix, escapePointerToken(name))
		if err := v.Patch([]byte(patch)); err != nil {
			if strings.Contains(err.Error(), "value not found") || strings.Contains(err.Error(), "path not found") {
				logger.Debugf("server %s not present in %s, nothing to remove", name, s.path)
				return nil
			}
			return fmt.Errorf("failed to patch %s: %w", s.path, err)
		}

		return s.writeBack(v)
	})
}

// SetDisabled flips a server's disabled flag in place.
func (s *Store) SetDisabled(name string, disabled bool) error {
	entry, err := s.Get(name)
	if err != nil {
		return err
	}
	if entry.Disabled == disabled {
		return nil
	}
	entry.Disabled = disabled
	return s.Upsert(name, entry)
}

// Rename moves a server entry to a new name. The target name must be free.
func (s *Store) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	doc, err := s.Load()
	if err != nil {
		return err
	}
	entry, ok := doc.MCPServers[oldName]
	if !ok {
		return fmt.Errorf("%w: server %s", hive.ErrNotFound, oldName)
	}
	if _, exists := doc.MCPServers[newName]; exists {
		return fmt.Errorf("server %s already exists", newName)
	}
	if err := s.Upsert(newName, entry); err != nil {
		return err
	}
	return s.Remove(oldName)
}

// Servers converts the document into connection descriptors. Broken entries
// are logged and skipped so one bad definition never hides the rest.
func (s *Store) Servers() ([]hive.ServerDescriptor, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}

	descs, errs := doc.Descriptors()
	for _, convErr := range errs {
		logger.Warnf("Skipping server definition in %s: %v", s.path, convErr)
	}
	return descs, nil
}

// ParseFile converts the mcpServers document at path into connection
// descriptors. This is the orchestrator's config-file source.
func ParseFile(path string) ([]hive.ServerDescriptor, error) {
	store := &Store{path: path}
	return store.Servers()
}

// readForEdit reads the raw document for a patch cycle, treating a missing
// or empty file as an empty object.
func (s *Store) readForEdit() ([]byte, error) {
	content, err := os.ReadFile(s.path) // #nosec G304: path is the user's own server file
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(content) == 0 {
		content = []byte("{}")
	}
	return content, nil
}

// writeBack formats the patched value and writes it atomically.
func (s *Store) writeBack(v hujson.Value) error {
	formatted, err := hujson.Format(v.Pack())
	if err != nil {
		return fmt.Errorf("failed to format %s: %w", s.path, err)
	}
	if err := fileutils.AtomicWriteFile(s.path, formatted, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// withFileLock runs fn while holding the document's sibling lock file.
func (s *Store) withFileLock(fn func() error) error {
	lockPath := s.path + ".lock"
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s: timeout after %v", lockPath, lockTimeout)
	}
	defer fileLock.Unlock()

	return fn()
}

// ensurePathExists makes sure the mcpServers object exists before a patch
// targets a child of it; "add" fails on a missing parent. Existence is
// checked with gjson (which wants dots escaped) and created with a JSON
// Patch (which treats dots as ordinary characters).
func ensurePathExists(content []byte, path string) []byte {
	key := strings.ReplaceAll(strings.TrimPrefix(path, "/"), ".", `\.`)
	if gjson.GetBytes(content, key).Exists() {
		return content
	}

	v, err := hujson.Parse(content)
	if err != nil {
		return content
	}
	patch := fmt.Sprintf(`[{ "op": "add", "path": "%s", "value": {} }]`, path)
	if err := v.Patch([]byte(patch)); err != nil {
		return content
	}
	return v.Pack()
}

// escapePointerToken escapes a server name for use as a JSON pointer token.
// Registry-hosted names like "@owner/name" contain slashes.
func escapePointerToken(name string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(name)
}

func sortedNames(servers map[string]ServerEntry) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
