// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIssuer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		serverURL string
		want      string
	}{
		{
			name:      "path is stripped",
			serverURL: "https://mcp.example.com/v1/sse",
			want:      "https://mcp.example.com",
		},
		{
			name:      "port is preserved",
			serverURL: "https://mcp.example.com:8443/path",
			want:      "https://mcp.example.com:8443",
		},
		{
			name:      "plain http is upgraded",
			serverURL: "http://mcp.example.com/path",
			want:      "https://mcp.example.com",
		},
		{
			name:      "localhost keeps its scheme",
			serverURL: "http://localhost:9000/mcp",
			want:      "http://localhost:9000",
		},
		{
			name:      "loopback address keeps its scheme",
			serverURL: "http://127.0.0.1:9000",
			want:      "http://127.0.0.1:9000",
		},
		{
			name:      "empty URL",
			serverURL: "",
			want:      "",
		},
		{
			name:      "missing host",
			serverURL: "mcp.example.com/path",
			want:      "",
		},
		{
			name:      "unparseable URL",
			serverURL: "://bad",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DeriveIssuer(tt.serverURL))
		})
	}
}

func TestDiscoverEndpointsOIDC(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		issuer := "http://" + r.Host
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"registration_endpoint": %q,
			"jwks_uri": %q,
			"scopes_supported": ["mcp", "offline_access"]
		}`, issuer, issuer+"/authorize", issuer+"/token", issuer+"/register", issuer+"/jwks")
	}))
	defer srv.Close()

	endpoints, err := DiscoverEndpoints(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authorize", endpoints.AuthorizationURL)
	assert.Equal(t, srv.URL+"/token", endpoints.TokenURL)
	assert.Equal(t, srv.URL+"/register", endpoints.RegistrationURL)
	assert.Equal(t, []string{"mcp", "offline_access"}, endpoints.ScopesSupported)
}

func TestDiscoverEndpointsRFC8414Fallback(t *testing.T) {
	t.Parallel()

	// No OIDC document; only RFC 8414 authorization server metadata.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/oauth-authorization-server" {
			http.NotFound(w, r)
			return
		}
		issuer := "http://" + r.Host
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q
		}`, issuer, issuer+"/authorize", issuer+"/token")
	}))
	defer srv.Close()

	endpoints, err := DiscoverEndpoints(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authorize", endpoints.AuthorizationURL)
	assert.Equal(t, srv.URL+"/token", endpoints.TokenURL)
	assert.Empty(t, endpoints.RegistrationURL)
}

func TestDiscoverEndpointsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DiscoverEndpoints(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to discover OAuth endpoints")
}

func TestDiscoverAuthServerMetadataIssuerMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"issuer": "https://somewhere-else.example.com",
			"authorization_endpoint": "https://somewhere-else.example.com/authorize",
			"token_endpoint": "https://somewhere-else.example.com/token"
		}`)
	}))
	defer srv.Close()

	_, err := discoverAuthServerMetadata(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer mismatch")
}

func TestBuildMetadataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		issuer  string
		want    string
		wantErr bool
	}{
		{
			name:   "bare issuer",
			issuer: "https://auth.example.com",
			want:   "https://auth.example.com/.well-known/oauth-authorization-server",
		},
		{
			name:   "tenant path is appended after the well-known segment",
			issuer: "https://auth.example.com/tenant1",
			want:   "https://auth.example.com/.well-known/oauth-authorization-server/tenant1",
		},
		{
			name:   "localhost may use http",
			issuer: "http://localhost:8080",
			want:   "http://localhost:8080/.well-known/oauth-authorization-server",
		},
		{
			name:    "plain http is rejected",
			issuer:  "http://auth.example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildMetadataURL(tt.issuer)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
