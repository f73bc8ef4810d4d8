// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistryClient(t *testing.T, handler http.Handler) *MCPRegistryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewMCPRegistryClient(srv.URL, srv.Client())
	require.NoError(t, err)
	return client
}

func TestMCPRegistryClient_GetServer(t *testing.T) {
	t.Parallel()

	client := newTestRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/servers/io.github.acme/fs", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"server": {"name": "io.github.acme/fs", "description": "File tools"}}`)
	}))

	server, err := client.GetServer(t.Context(), "io.github.acme/fs")
	require.NoError(t, err)
	assert.Equal(t, "io.github.acme/fs", server.Name)
	assert.Equal(t, "File tools", server.Description)
}

func TestMCPRegistryClient_GetServerNotFound(t *testing.T) {
	t.Parallel()

	client := newTestRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetServer(t.Context(), "io.github.acme/missing")
	require.Error(t, err)
}

func TestMCPRegistryClient_ListServersPagination(t *testing.T) {
	t.Parallel()

	client := newTestRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"servers": [{"server": {"name": "a"}}, {"server": {"name": "b"}}], "metadata": {"nextCursor": "page2"}}`)
		case "page2":
			fmt.Fprint(w, `{"servers": [{"server": {"name": "c"}}], "metadata": {}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	servers, err := client.ListServers(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, servers, 3)
	assert.Equal(t, "a", servers[0].Name)
	assert.Equal(t, "c", servers[2].Name)
}

func TestMCPRegistryClient_SearchServers(t *testing.T) {
	t.Parallel()

	client := newTestRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fetch", r.URL.Query().Get("search"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"servers": [{"server": {"name": "io.github.acme/fetch"}}], "metadata": {}}`)
	}))

	servers, err := client.SearchServers(t.Context(), "fetch")
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "io.github.acme/fetch", servers[0].Name)
}
