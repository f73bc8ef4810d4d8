// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"net/url"

	v0 "github.com/modelcontextprotocol/registry/pkg/api/v0"

	"github.com/stacklok/hivechat/pkg/networking"
)

// maxRegistryServers caps pagination so a misbehaving endpoint that keeps
// returning cursors cannot loop forever.
const maxRegistryServers = 10000

// MCPRegistryClient talks to an official MCP registry v0 API endpoint.
type MCPRegistryClient struct {
	baseURL string
	client  networking.HTTPClient
}

// NewMCPRegistryClient creates a client for the registry at baseURL.
func NewMCPRegistryClient(baseURL string, client networking.HTTPClient) (*MCPRegistryClient, error) {
	if client == nil {
		httpClient, err := networking.NewHttpClientBuilder().Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
		client = httpClient
	}
	return &MCPRegistryClient{
		baseURL: trimTrailingSlash(baseURL),
		client:  client,
	}, nil
}

// GetServer retrieves a single server by its reverse-DNS name.
func (c *MCPRegistryClient) GetServer(ctx context.Context, name string) (*v0.ServerJSON, error) {
	endpoint := fmt.Sprintf("%s/v0/servers/%s", c.baseURL, url.PathEscape(name))

	res, err := networking.FetchJSON[v0.ServerResponse](ctx, c.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server %s: %w", name, err)
	}
	return &res.Data.Server, nil
}

// ListServers retrieves all servers, following pagination cursors.
func (c *MCPRegistryClient) ListServers(ctx context.Context, limit int) ([]*v0.ServerJSON, error) {
	if limit <= 0 {
		limit = 100
	}

	var all []*v0.ServerJSON
	cursor := ""
	for {
		servers, nextCursor, err := c.fetchPage(ctx, "", cursor, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, servers...)

		if nextCursor == "" {
			return all, nil
		}
		cursor = nextCursor

		if len(all) > maxRegistryServers {
			return nil, fmt.Errorf("exceeded maximum server limit (%d)", maxRegistryServers)
		}
	}
}

// SearchServers returns the servers matching the query string.
func (c *MCPRegistryClient) SearchServers(ctx context.Context, query string) ([]*v0.ServerJSON, error) {
	servers, _, err := c.fetchPage(ctx, query, "", 0)
	return servers, err
}

func (c *MCPRegistryClient) fetchPage(ctx context.Context, search, cursor string, limit int) ([]*v0.ServerJSON, string, error) {
	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	endpoint := fmt.Sprintf("%s/v0/servers", c.baseURL)
	if len(params) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	res, err := networking.FetchJSON[v0.ServerListResponse](ctx, c.client, endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch servers: %w", err)
	}

	servers := make([]*v0.ServerJSON, len(res.Data.Servers))
	for i := range res.Data.Servers {
		servers[i] = &res.Data.Servers[i].Server
	}
	return servers, res.Data.Metadata.NextCursor, nil
}
