// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package aggregator maintains the unified tool catalog.
//
// Tools from every connected server are registered under their qualified
// name ({server}.{tool}), so two servers may expose the same local tool name
// without colliding. The catalog also tracks per-tool enablement: the key
// set of the enablement map is always exactly the set of registered
// qualified names, so callers can range over either and stay consistent.
package aggregator

import (
	"fmt"
	"sync"

	"github.com/stacklok/hivechat/pkg/hive"
)

// Catalog is the aggregated, enablement-aware tool index. Safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	tools   map[string]hive.Tool
	order   []string
	enabled map[string]bool
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tools:   make(map[string]hive.Tool),
		enabled: make(map[string]bool),
	}
}

// Add registers tools, enabled by default. Re-adding a qualified name
// replaces the tool definition but keeps its enablement, so a reconnect
// does not resurrect tools the user disabled.
func (c *Catalog) Add(tools ...hive.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tool := range tools {
		if _, exists := c.tools[tool.QualifiedName]; !exists {
			c.order = append(c.order, tool.QualifiedName)
			c.enabled[tool.QualifiedName] = true
		}
		c.tools[tool.QualifiedName] = tool
	}
}

// Reset drops every registered tool.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tools = make(map[string]hive.Tool)
	c.order = nil
	c.enabled = make(map[string]bool)
}

// Get returns the tool registered under a qualified name.
func (c *Catalog) Get(qualifiedName string) (hive.Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tool, ok := c.tools[qualifiedName]
	return tool, ok
}

// List returns all tools in registration order.
func (c *Catalog) List() []hive.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]hive.Tool, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tools[name])
	}
	return out
}

// EnabledTools returns the enabled tools in registration order. This is the
// set handed to the model.
func (c *Catalog) EnabledTools() []hive.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []hive.Tool
	for _, name := range c.order {
		if c.enabled[name] {
			out = append(out, c.tools[name])
		}
	}
	return out
}

// Enabled returns a copy of the enablement map.
func (c *Catalog) Enabled() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]bool, len(c.enabled))
	for name, on := range c.enabled {
		out[name] = on
	}
	return out
}

// SetEnabled flips one tool's enablement. Unknown qualified names return a
// wrapped hive.ErrNotFound and never grow the map.
func (c *Catalog) SetEnabled(qualifiedName string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tools[qualifiedName]; !ok {
		return fmt.Errorf("%w: tool %s", hive.ErrNotFound, qualifiedName)
	}
	c.enabled[qualifiedName] = enabled
	return nil
}

// EnableAll enables every registered tool.
func (c *Catalog) EnableAll() {
	c.setAll(true)
}

// DisableAll disables every registered tool.
func (c *Catalog) DisableAll() {
	c.setAll(false)
}

func (c *Catalog) setAll(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range c.tools {
		c.enabled[name] = enabled
	}
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tools)
}
