// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/networking"
)

// tokenPersister persists a token set after rotation.
type tokenPersister func(tokens TokenSet) error

// persistingTokenSource wraps an oauth2.TokenSource and persists the token
// set whenever the access token changes, so later runs can resume without a
// new authorization. Persistence failures are logged, never surfaced: a
// token that could not be written to disk is still valid for this session.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	persist tokenPersister

	mu         sync.Mutex
	lastAccess string
}

// newPersistingTokenSource wraps base so refreshed tokens reach persist.
func newPersistingTokenSource(base oauth2.TokenSource, persist tokenPersister) oauth2.TokenSource {
	return &persistingTokenSource{base: base, persist: persist}
}

// Token returns a token from the underlying source, persisting it first if
// it changed since the last call.
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != "" && token.AccessToken != s.lastAccess {
		if err := s.persist(NewTokenSet(token)); err != nil {
			logger.Warnf("Failed to persist refreshed OAuth tokens: %v", err)
		} else {
			s.lastAccess = token.AccessToken
		}
	}

	return token, nil
}

// authRoundTripper injects the Authorization header from a token source into
// every outgoing request. Requests are cloned before mutation.
type authRoundTripper struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	clone := req.Clone(req.Context())
	token.SetAuthHeader(clone)
	return t.base.RoundTrip(clone)
}

// newAuthClient builds an HTTP client that authenticates every request from
// the given token source.
func newAuthClient(source oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &authRoundTripper{
			base:   http.DefaultTransport,
			source: source,
		},
		Timeout: networking.HttpTimeout,
	}
}

// staticTokenSource returns a source that always yields the given bearer
// token.
func staticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}
