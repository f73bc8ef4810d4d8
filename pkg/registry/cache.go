// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"sync"
	"time"
)

// defaultCacheTTL bounds how long a cached registry response is served
// before it is fetched again.
const defaultCacheTTL = 5 * time.Minute

// memoryCache is a small TTL cache for registry responses. Server metadata
// changes rarely, so detail lookups during one interactive session should
// not hit the network more than once per entry.
type memoryCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry[T]

	// now is swapped out in tests.
	now func() time.Time
}

type cacheEntry[T any] struct {
	value   T
	expires time.Time
}

func newMemoryCache[T any](ttl time.Duration) *memoryCache[T] {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &memoryCache[T]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[T]),
		now:     time.Now,
	}
}

func (c *memoryCache[T]) get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (c *memoryCache[T]) put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[T]{
		value:   value,
		expires: c.now().Add(c.ttl),
	}
}

func (c *memoryCache[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry[T])
}
