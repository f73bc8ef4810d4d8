// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// stubTokenSource returns queued tokens in order, repeating the last one.
type stubTokenSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *stubTokenSource) Token() (*oauth2.Token, error) {
	idx := s.calls
	if idx >= len(s.tokens) {
		idx = len(s.tokens) - 1
	}
	s.calls++
	return s.tokens[idx], nil
}

func TestPersistingTokenSource(t *testing.T) {
	t.Parallel()

	base := &stubTokenSource{tokens: []*oauth2.Token{
		{AccessToken: "first", TokenType: "Bearer"},
		{AccessToken: "first", TokenType: "Bearer"},
		{AccessToken: "rotated", TokenType: "Bearer"},
	}}

	var persisted []string
	source := newPersistingTokenSource(base, func(tokens TokenSet) error {
		persisted = append(persisted, tokens.AccessToken)
		return nil
	})

	for i := 0; i < 3; i++ {
		_, err := source.Token()
		require.NoError(t, err)
	}

	// Persisted once per distinct access token, not once per call.
	assert.Equal(t, []string{"first", "rotated"}, persisted)
}

func TestPersistingTokenSourceSurvivesPersistFailure(t *testing.T) {
	t.Parallel()

	base := &stubTokenSource{tokens: []*oauth2.Token{{AccessToken: "tok", TokenType: "Bearer"}}}

	attempts := 0
	source := newPersistingTokenSource(base, func(TokenSet) error {
		attempts++
		return fmt.Errorf("disk full")
	})

	// The token flows through even when it cannot be written, and the next
	// call tries again.
	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)

	_, err = source.Token()
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestAuthRoundTripper(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newAuthClient(staticTokenSource("session-token"))
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
