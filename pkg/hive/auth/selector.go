// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves authentication for MCP server connections.
//
// Each remote server gets one of three strategies: no authentication, a
// bearer token, or the OAuth authorization code flow with PKCE. The Selector
// picks the strategy from the server's credential hint, its registry
// affiliation, and any tokens persisted from earlier authorizations. Token
// sets live under the user's config directory, one file per server keyed by
// a digest of the server URL.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

// Options configures a Selector.
type Options struct {
	// APIKey authenticates registry-hosted servers. Empty means connect to
	// them without credentials.
	APIKey string

	// RegistryHost marks a server URL as registry-hosted when its host
	// contains this value.
	RegistryHost string

	// FlowTimeout bounds how long the interactive OAuth flow waits for the
	// pasted authorization code. Zero applies the flow default.
	FlowTimeout time.Duration

	// CallbackPort pins the localhost port in the OAuth redirect URL. Zero
	// picks an available port.
	CallbackPort int

	// Input is where the interactive flow reads the pasted authorization
	// code from. Defaults to os.Stdin.
	Input io.Reader
}

// Selector resolves the authentication strategy for each server.
type Selector struct {
	store *Store
	opts  Options
}

// NewSelector creates a Selector backed by the given token store.
func NewSelector(store *Store, opts Options) *Selector {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	return &Selector{store: store, opts: opts}
}

// Select resolves the authentication context for a server. The rules apply
// in order:
//
//  1. A credential hint of "oauth" runs the OAuth path.
//  2. Any other non-empty hint is used verbatim as a bearer token.
//  3. Registry-hosted servers get the registry API key as a bearer token;
//     a missing key degrades to unauthenticated with a warning.
//  4. Servers with previously persisted tokens get the OAuth path.
//  5. Everything else connects unauthenticated.
func (s *Selector) Select(ctx context.Context, identity, serverURL, hint string) (hive.AuthContext, error) {
	switch {
	case hint == hive.CredentialOAuth:
		return s.oauthContext(ctx, serverURL)
	case hint != "":
		return hive.AuthContext{Kind: hive.AuthBearer, Token: hint}, nil
	}

	if s.registryHosted(identity, serverURL) {
		if s.opts.APIKey == "" {
			logger.Warnf("No registry API key configured for %s; connecting without credentials", identity)
			return hive.AuthContext{Kind: hive.AuthNone}, nil
		}
		return hive.AuthContext{Kind: hive.AuthBearer, Token: s.opts.APIKey}, nil
	}

	if serverURL != "" {
		if _, err := s.store.Load(serverURL); err == nil {
			return s.oauthContext(ctx, serverURL)
		}
	}

	return hive.AuthContext{Kind: hive.AuthNone}, nil
}

// oauthContext reuses stored tokens when they are still fresh and runs the
// interactive authorization flow otherwise. Fresh stored tokens are used
// as-is; a full flow additionally wires a refreshing, persisting token
// source into the returned HTTP client.
func (s *Selector) oauthContext(ctx context.Context, serverURL string) (hive.AuthContext, error) {
	if serverURL == "" {
		return hive.AuthContext{}, fmt.Errorf("OAuth authentication requires a server URL")
	}

	stored, err := s.store.Load(serverURL)
	if err == nil && !stored.Expired(time.Now()) {
		logger.Debugf("Reusing stored tokens for %s", serverURL)
		return hive.AuthContext{
			Kind:   hive.AuthOAuth,
			Token:  stored.AccessToken,
			Client: newAuthClient(staticTokenSource(stored.AccessToken)),
		}, nil
	}
	if err == nil {
		logger.Infof("Stored tokens for %s have expired; starting a new authorization", serverURL)
	}

	flow, err := NewFlow(serverURL, Config{CallbackPort: s.opts.CallbackPort})
	if err != nil {
		return hive.AuthContext{}, err
	}

	token, err := flow.Authorize(ctx, s.opts.Input, s.opts.FlowTimeout)
	if err != nil {
		return hive.AuthContext{}, err
	}

	if err := s.store.Save(serverURL, NewTokenSet(token)); err != nil {
		logger.Warnf("Failed to persist tokens for %s: %v", serverURL, err)
	}

	// The refresh source outlives the connect call, so it must not inherit
	// the dial context.
	source := newPersistingTokenSource(
		flow.TokenSource(context.Background(), token),
		func(tokens TokenSet) error { return s.store.Save(serverURL, tokens) },
	)
	return hive.AuthContext{
		Kind:   hive.AuthOAuth,
		Token:  token.AccessToken,
		Client: newAuthClient(source),
	}, nil
}

// registryHosted reports whether a server is hosted on the configured
// registry, either by its @owner/name identity or by its URL host.
func (s *Selector) registryHosted(identity, serverURL string) bool {
	if hive.IsRegistryIdentity(identity) {
		return true
	}
	if s.opts.RegistryHost == "" || serverURL == "" {
		return false
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	return strings.Contains(parsed.Host, s.opts.RegistryHost)
}
