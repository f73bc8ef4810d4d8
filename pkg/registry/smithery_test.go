// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSmitheryClient(t *testing.T, apiKey string, handler http.Handler) (*SmitheryClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSmitheryClient(srv.URL, apiKey, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client, srv
}

func TestSmitheryClient_Search(t *testing.T) {
	t.Parallel()

	client, _ := newTestSmitheryClient(t, "sk-test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "filesystem", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResult{
			Servers: []SmitheryServer{
				{QualifiedName: "@acme/fs", DisplayName: "Filesystem", Description: "File tools"},
			},
			Pagination: Pagination{CurrentPage: 1, PageSize: 10, TotalPages: 1, TotalCount: 1},
		})
	}))

	result, err := client.Search(t.Context(), "filesystem", 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Servers, 1)
	assert.Equal(t, "@acme/fs", result.Servers[0].QualifiedName)
	assert.Equal(t, 1, result.Pagination.TotalCount)
}

func TestSmitheryClient_SearchRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client, err := NewSmitheryClient("https://registry.smithery.ai", "")
	require.NoError(t, err)

	_, err = client.Search(t.Context(), "anything", 1, 10)
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestSmitheryClient_ServerCaching(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestSmitheryClient(t, "sk-test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/servers/@acme/fs", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ServerDetail{
			QualifiedName: "@acme/fs",
			DisplayName:   "Filesystem",
			Connections:   []Connection{{Type: "shttp", DeploymentURL: "https://server.smithery.ai/@acme/fs/mcp"}},
		})
	}))

	first, err := client.Server(t.Context(), "@acme/fs")
	require.NoError(t, err)
	second, err := client.Server(t.Context(), "@acme/fs")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from cache")

	client.ClearCache()
	_, err = client.Server(t.Context(), "@acme/fs")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSmitheryClient_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestSmitheryClient(t, "sk-test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResult{})
	}))

	_, err := client.Search(t.Context(), "x", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSmitheryClient_ClientErrorsArePermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestSmitheryClient(t, "sk-bad", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Search(t.Context(), "x", 1, 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "401 is not retried")
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	cache := newMemoryCache[string](time.Minute)
	base := time.Now()
	cache.now = func() time.Time { return base }

	cache.put("k", "v")
	got, ok := cache.get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	cache.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok = cache.get("k")
	assert.False(t, ok, "entries expire after the TTL")
}
