// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/networking"
)

// defaultAuthorizeTimeout bounds how long Authorize waits for the user to
// paste the authorization code when the caller does not set a timeout.
const defaultAuthorizeTimeout = 5 * time.Minute

// Config configures an OAuth authorization flow. Every field is optional:
// missing endpoints are discovered from the server URL and a missing client
// ID triggers dynamic registration.
type Config struct {
	// ClientID is the OAuth client ID. Empty means register dynamically.
	ClientID string

	// ClientSecret is the OAuth client secret, usually empty for the
	// public-client PKCE flow.
	ClientSecret string

	// RedirectURL overrides the default localhost redirect URL.
	RedirectURL string

	// AuthURL and TokenURL override endpoint discovery when both are set.
	AuthURL  string
	TokenURL string

	// Scopes are the scopes to request. Empty means use the scopes the
	// issuer advertises.
	Scopes []string

	// CallbackPort is the localhost port used in the default redirect URL.
	// Zero picks a random available port.
	CallbackPort int
}

// Flow drives the authorization code flow with PKCE for one server. A Flow
// is single use: BeginAuthorization prepares the authorization URL and
// CompleteAuthorization exchanges the code the user obtained from it.
type Flow struct {
	serverURL string
	config    Config

	oauth2Config *oauth2.Config
	codeVerifier string
	state        string
}

// NewFlow creates an authorization flow for the given server URL. Endpoint
// discovery and client registration are deferred to BeginAuthorization.
func NewFlow(serverURL string, config Config) (*Flow, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	return &Flow{serverURL: serverURL, config: config}, nil
}

// BeginAuthorization prepares the flow and returns the URL the user must
// visit plus the state parameter embedded in it. It discovers endpoints when
// the config does not pin them and registers a client when no client ID is
// configured.
func (f *Flow) BeginAuthorization(ctx context.Context) (authURL string, state string, err error) {
	endpoints, err := f.resolveEndpoints(ctx)
	if err != nil {
		return "", "", err
	}

	redirectURL := f.config.RedirectURL
	if redirectURL == "" {
		port, err := networking.FindOrUsePort(f.config.CallbackPort)
		if err != nil {
			return "", "", fmt.Errorf("failed to select callback port: %w", err)
		}
		redirectURL = fmt.Sprintf("http://localhost:%d/callback", port)
	}

	scopes := f.config.Scopes
	if len(scopes) == 0 {
		scopes = endpoints.ScopesSupported
	}

	clientID := f.config.ClientID
	clientSecret := f.config.ClientSecret
	if clientID == "" {
		if endpoints.RegistrationURL == "" {
			return "", "", fmt.Errorf("no OAuth client ID configured and the authorization server for %s does not advertise dynamic registration", f.serverURL)
		}
		registered, err := registerClient(ctx, nil, endpoints.RegistrationURL, redirectURL, strings.Join(scopes, " "))
		if err != nil {
			return "", "", fmt.Errorf("dynamic client registration failed: %w", err)
		}
		logger.Debugf("Registered OAuth client %s with %s", registered.ClientID, endpoints.Issuer)
		clientID = registered.ClientID
		clientSecret = registered.ClientSecret
	}

	verifier, challenge, err := generatePKCEParams()
	if err != nil {
		return "", "", err
	}
	state, err = generateState()
	if err != nil {
		return "", "", err
	}

	f.codeVerifier = verifier
	f.state = state
	f.oauth2Config = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.AuthorizationURL,
			TokenURL: endpoints.TokenURL,
		},
	}

	authURL = f.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkceMethodS256),
	)
	return authURL, state, nil
}

// CompleteAuthorization exchanges the authorization code for tokens using
// the PKCE verifier generated in BeginAuthorization.
func (f *Flow) CompleteAuthorization(ctx context.Context, code string) (*oauth2.Token, error) {
	if f.oauth2Config == nil {
		return nil, fmt.Errorf("authorization has not been started")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}

	token, err := f.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", f.codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", hive.ErrAuthenticationFailed, err)
	}
	return token, nil
}

// TokenSource returns a refreshing token source for a token obtained from
// this flow. It panics if called before BeginAuthorization.
func (f *Flow) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return f.oauth2Config.TokenSource(ctx, token)
}

// Authorize runs the complete interactive flow: it opens the authorization
// URL in the user's browser (printing it as a fallback), waits up to timeout
// for the authorization code to be pasted on in, and exchanges it.
func (f *Flow) Authorize(ctx context.Context, in io.Reader, timeout time.Duration) (*oauth2.Token, error) {
	authURL, _, err := f.BeginAuthorization(ctx)
	if err != nil {
		return nil, err
	}

	if err := browser.OpenURL(authURL); err != nil {
		logger.Warnf("Failed to open browser: %v", err)
		logger.Infof("Please open this URL in your browser: %s", authURL)
	} else {
		logger.Infof("Opening browser to: %s", authURL)
	}
	logger.Infof("After authorizing, paste the code from the redirect URL here and press enter.")

	code, err := readCode(ctx, in, timeout)
	if err != nil {
		return nil, err
	}
	return f.CompleteAuthorization(ctx, code)
}

// resolveEndpoints returns the configured endpoints when both are pinned,
// otherwise discovers them from the server URL's issuer.
func (f *Flow) resolveEndpoints(ctx context.Context) (*Endpoints, error) {
	if f.config.AuthURL != "" && f.config.TokenURL != "" {
		return &Endpoints{
			AuthorizationURL: f.config.AuthURL,
			TokenURL:         f.config.TokenURL,
			ScopesSupported:  f.config.Scopes,
		}, nil
	}

	issuer := DeriveIssuer(f.serverURL)
	if issuer == "" {
		return nil, fmt.Errorf("cannot derive OAuth issuer from server URL %q", f.serverURL)
	}
	return DiscoverEndpoints(ctx, issuer)
}

// readCode reads one line from in, bounded by the timeout and the context.
// An expired wait maps to ErrTimeout so callers can tell "user walked away"
// apart from a rejected code.
func readCode(ctx context.Context, in io.Reader, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaultAuthorizeTimeout
	}

	type line struct {
		text string
		err  error
	}
	lines := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(in).ReadString('\n')
		// EOF after some input still carries a usable code.
		if err != nil && strings.TrimSpace(text) == "" {
			lines <- line{err: err}
			return
		}
		lines <- line{text: strings.TrimSpace(text)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l := <-lines:
		if l.err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", l.err)
		}
		if l.text == "" {
			return "", fmt.Errorf("no authorization code provided")
		}
		return l.text, nil
	case <-timer.C:
		return "", fmt.Errorf("%w: no authorization code entered within %s", hive.ErrTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// generatePKCEParams generates the PKCE code verifier and its S256 challenge.
func generatePKCEParams() (verifier, challenge string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)
	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])
	return verifier, challenge, nil
}

// generateState generates the CSRF state parameter.
func generateState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
