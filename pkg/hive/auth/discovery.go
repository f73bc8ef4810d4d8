// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/networking"
)

// wellKnownOAuthServerPath is the RFC 8414 authorization server metadata
// path, used when the issuer does not publish an OIDC discovery document.
const wellKnownOAuthServerPath = "/.well-known/oauth-authorization-server"

// pkceMethodS256 is the only code challenge method this client sends.
const pkceMethodS256 = "S256"

// Endpoints carries the OAuth endpoints resolved for a server's issuer.
type Endpoints struct {
	// Issuer is the issuer identifier the endpoints were discovered from.
	Issuer string

	// AuthorizationURL is the authorization endpoint.
	AuthorizationURL string

	// TokenURL is the token endpoint.
	TokenURL string

	// RegistrationURL is the RFC 7591 dynamic client registration endpoint,
	// empty when the issuer does not advertise one.
	RegistrationURL string

	// ScopesSupported lists the scopes the issuer advertises, used as the
	// default request scopes when the caller supplies none.
	ScopesSupported []string
}

// DeriveIssuer derives the OAuth issuer from a server URL: the URL's host
// under HTTPS. Localhost keeps its original scheme so local development
// servers can be authorized over plain HTTP.
func DeriveIssuer(serverURL string) string {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		logger.Debugf("Failed to parse server URL %q: %v", serverURL, err)
		return ""
	}

	host := parsed.Hostname()
	if host == "" {
		return ""
	}
	if port := parsed.Port(); port != "" {
		host = fmt.Sprintf("%s:%s", host, port)
	}

	scheme := networking.HttpsScheme
	if networking.IsLocalhost(host) && parsed.Scheme != "" {
		scheme = parsed.Scheme
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}

// DiscoverEndpoints resolves an issuer's OAuth endpoints. OIDC discovery is
// tried first; issuers without an OIDC document fall back to RFC 8414
// authorization server metadata.
func DiscoverEndpoints(ctx context.Context, issuer string) (*Endpoints, error) {
	endpoints, oidcErr := discoverOIDC(ctx, issuer)
	if oidcErr == nil {
		return endpoints, nil
	}
	logger.Debugf("OIDC discovery failed for %s, trying RFC 8414 metadata: %v", issuer, oidcErr)

	endpoints, oauthErr := discoverAuthServerMetadata(ctx, issuer, nil)
	if oauthErr == nil {
		return endpoints, nil
	}

	return nil, fmt.Errorf("unable to discover OAuth endpoints for %q: OIDC error: %v, RFC 8414 error: %v",
		issuer, oidcErr, oauthErr)
}

// discoverOIDC resolves endpoints through the issuer's OIDC discovery
// document. The provider library validates that the document's issuer claim
// matches the requested issuer.
func discoverOIDC(ctx context.Context, issuer string) (*Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}

	endpoint := provider.Endpoint()

	// The provider type only surfaces the standard endpoints; registration
	// and scope metadata come from the raw document.
	var extra struct {
		RegistrationEndpoint string   `json:"registration_endpoint"`
		ScopesSupported      []string `json:"scopes_supported"`
	}
	if err := provider.Claims(&extra); err != nil {
		logger.Debugf("Unable to decode provider metadata extras: %v", err)
	}

	return &Endpoints{
		Issuer:           issuer,
		AuthorizationURL: endpoint.AuthURL,
		TokenURL:         endpoint.TokenURL,
		RegistrationURL:  extra.RegistrationEndpoint,
		ScopesSupported:  extra.ScopesSupported,
	}, nil
}

// authServerMetadata is the RFC 8414 authorization server metadata document.
type authServerMetadata struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	RegistrationEndpoint  string   `json:"registration_endpoint,omitempty"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
}

// discoverAuthServerMetadata fetches RFC 8414 metadata from
// /.well-known/oauth-authorization-server, honoring tenant paths in the
// issuer the way the RFC prescribes (path inserted after the well-known
// segment).
func discoverAuthServerMetadata(ctx context.Context, issuer string, client networking.HTTPClient) (*Endpoints, error) {
	metadataURL, err := buildMetadataURL(issuer)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		}
	}

	result, err := networking.FetchJSON[authServerMetadata](ctx, client, metadataURL)
	if err != nil {
		return nil, err
	}

	doc := result.Data
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, fmt.Errorf("%s: metadata is missing authorization or token endpoint", metadataURL)
	}
	if doc.Issuer != "" && doc.Issuer != issuer {
		return nil, fmt.Errorf("%s: issuer mismatch: expected %s, got %s", metadataURL, issuer, doc.Issuer)
	}

	return &Endpoints{
		Issuer:           issuer,
		AuthorizationURL: doc.AuthorizationEndpoint,
		TokenURL:         doc.TokenEndpoint,
		RegistrationURL:  doc.RegistrationEndpoint,
		ScopesSupported:  doc.ScopesSupported,
	}, nil
}

// buildMetadataURL builds the RFC 8414 metadata URL for an issuer.
func buildMetadataURL(issuer string) (string, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("invalid issuer URL: %w", err)
	}

	// Enforce HTTPS except for localhost development issuers.
	if issuerURL.Scheme != networking.HttpsScheme && !networking.IsLocalhost(issuerURL.Host) {
		return "", fmt.Errorf("issuer must use HTTPS: %s", issuer)
	}

	tenant := strings.Trim(issuerURL.EscapedPath(), "/")
	metadata := url.URL{
		Scheme: issuerURL.Scheme,
		Host:   issuerURL.Host,
		Path:   path.Join(wellKnownOAuthServerPath, tenant),
	}
	return metadata.String(), nil
}
