// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stacklok/hivechat/pkg/networking"
)

// clientName is the client_name presented during dynamic registration.
const clientName = "HiveChat MCP Client"

// registrationRequest is the RFC 7591 dynamic client registration request.
// The shape is public-client only: authorization code grant with PKCE and no
// token endpoint authentication.
type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// registrationResponse is the subset of the RFC 7591 response this client
// consumes.
type registrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// registerClient performs dynamic client registration against
// registrationURL and returns the issued client credentials.
func registerClient(ctx context.Context, httpClient *http.Client, registrationURL, redirectURI, scope string) (*registrationResponse, error) {
	if err := validateRegistrationURL(registrationURL); err != nil {
		return nil, err
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required for client registration")
	}

	request := registrationRequest{
		RedirectURIs:            []string{redirectURI},
		ClientName:              clientName,
		GrantTypes:              []string{"authorization_code"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
		Scope:                   scope,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", networking.ContentTypeJSON)
	req.Header.Set("Accept", networking.ContentTypeJSON)

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	// RFC 7591 says 201 Created, but some servers answer 200.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, networking.NewHTTPError(resp.StatusCode, registrationURL, resp.Status)
	}

	var registered registrationResponse
	if err := json.Unmarshal(respBody, &registered); err != nil {
		return nil, fmt.Errorf("failed to parse registration response: %w", err)
	}
	if registered.ClientID == "" {
		return nil, fmt.Errorf("registration response is missing client_id")
	}

	return &registered, nil
}

// validateRegistrationURL rejects non-HTTPS registration endpoints except on
// localhost, where development issuers run over plain HTTP.
func validateRegistrationURL(registrationURL string) error {
	if registrationURL == "" {
		return fmt.Errorf("registration endpoint is required")
	}
	parsed, err := url.Parse(registrationURL)
	if err != nil {
		return fmt.Errorf("invalid registration endpoint: %w", err)
	}
	if parsed.Scheme != networking.HttpsScheme && !networking.IsLocalhost(parsed.Host) {
		return fmt.Errorf("registration endpoint must use HTTPS: %s", registrationURL)
	}
	return nil
}
