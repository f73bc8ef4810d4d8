// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry provides thin HTTP clients for third-party MCP server
// registries: the Smithery registry and the official MCP registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/hivechat/pkg/networking"
)

// SmitheryHost is the hostname of the public Smithery registry. URLs on
// this host get the configured API key as a bearer credential.
const SmitheryHost = "server.smithery.ai"

// ErrAPIKeyRequired is returned when a Smithery operation is attempted
// without a configured API key.
var ErrAPIKeyRequired = errors.New("smithery API key is required")

// smitheryMaxTries bounds retries of a transient registry failure,
// including the initial attempt.
const smitheryMaxTries = 3

// SmitheryServer is one search result summary.
type SmitheryServer struct {
	QualifiedName string `json:"qualifiedName"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description"`
	Homepage      string `json:"homepage"`
	UseCount      int    `json:"useCount"`
	IsDeployed    bool   `json:"isDeployed"`
}

// Pagination is the page metadata of a search response.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
}

// SearchResult is a page of search results.
type SearchResult struct {
	Servers    []SmitheryServer `json:"servers"`
	Pagination Pagination       `json:"pagination"`
}

// Connection describes one way to reach a server.
type Connection struct {
	Type          string         `json:"type"`
	URL           string         `json:"url,omitempty"`
	DeploymentURL string         `json:"deploymentUrl,omitempty"`
	ConfigSchema  map[string]any `json:"configSchema,omitempty"`
}

// Security carries the registry's scan verdict for a server.
type Security struct {
	ScanPassed bool `json:"scanPassed"`
}

// ToolSummary is the registry's view of one tool a server exposes.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerDetail is the full record of one registry server.
type ServerDetail struct {
	QualifiedName string        `json:"qualifiedName"`
	DisplayName   string        `json:"displayName"`
	Description   string        `json:"description"`
	Homepage      string        `json:"homepage"`
	IconURL       string        `json:"iconUrl,omitempty"`
	Security      *Security     `json:"security,omitempty"`
	Tools         []ToolSummary `json:"tools,omitempty"`
	Connections   []Connection  `json:"connections,omitempty"`
}

// SmitheryClient talks to the Smithery registry REST API. Detail lookups
// are cached; searches always go to the network.
type SmitheryClient struct {
	baseURL string
	apiKey  string
	client  networking.HTTPClient
	cache   *memoryCache[*ServerDetail]
}

// SmitheryOption configures a SmitheryClient.
type SmitheryOption func(*SmitheryClient)

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(client networking.HTTPClient) SmitheryOption {
	return func(c *SmitheryClient) {
		c.client = client
	}
}

// WithCacheTTL overrides the detail cache lifetime.
func WithCacheTTL(ttl time.Duration) SmitheryOption {
	return func(c *SmitheryClient) {
		c.cache = newMemoryCache[*ServerDetail](ttl)
	}
}

// NewSmitheryClient creates a Smithery registry client. The API key may be
// empty; operations that require it fail with ErrAPIKeyRequired.
func NewSmitheryClient(baseURL, apiKey string, opts ...SmitheryOption) (*SmitheryClient, error) {
	c := &SmitheryClient{
		baseURL: trimTrailingSlash(baseURL),
		apiKey:  apiKey,
		cache:   newMemoryCache[*ServerDetail](defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		httpClient, err := networking.NewHttpClientBuilder().Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
		c.client = httpClient
	}
	return c, nil
}

// Search queries the registry. Page numbering starts at 1.
func (c *SmitheryClient) Search(ctx context.Context, query string, page, pageSize int) (*SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	endpoint := fmt.Sprintf("%s/servers?%s", c.baseURL, params.Encode())

	result, err := fetchWithRetry(ctx, func(ctx context.Context) (*SearchResult, error) {
		res, err := networking.FetchJSON[SearchResult](ctx, c.client, endpoint,
			networking.WithHeader("Authorization", "Bearer "+c.apiKey))
		if err != nil {
			return nil, err
		}
		return &res.Data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("smithery search failed: %w", err)
	}
	return result, nil
}

// Server fetches the full record of one server by qualified name, serving
// repeated lookups from the cache.
func (c *SmitheryClient) Server(ctx context.Context, qualifiedName string) (*ServerDetail, error) {
	if detail, ok := c.cache.get(qualifiedName); ok {
		return detail, nil
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	endpoint := fmt.Sprintf("%s/servers/%s", c.baseURL, url.PathEscape(qualifiedName))

	detail, err := fetchWithRetry(ctx, func(ctx context.Context) (*ServerDetail, error) {
		res, err := networking.FetchJSON[ServerDetail](ctx, c.client, endpoint,
			networking.WithHeader("Authorization", "Bearer "+c.apiKey))
		if err != nil {
			return nil, err
		}
		return &res.Data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("smithery lookup of %s failed: %w", qualifiedName, err)
	}

	c.cache.put(qualifiedName, detail)
	return detail, nil
}

// ClearCache drops all cached detail records.
func (c *SmitheryClient) ClearCache() {
	c.cache.clear()
}

// fetchWithRetry runs fetch under exponential backoff. Client errors other
// than 429 are permanent; transport errors and 5xx are retried.
func fetchWithRetry[T any](ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	operation := func() (T, error) {
		result, err := fetch(ctx)
		if err != nil {
			var httpErr *networking.HTTPError
			if errors.As(err, &httpErr) &&
				httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
				httpErr.StatusCode != http.StatusTooManyRequests {
				return result, backoff.Permanent(err)
			}
			return result, err
		}
		return result, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(smitheryMaxTries),
	)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
