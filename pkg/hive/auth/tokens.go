// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/stacklok/hivechat/pkg/fileutils"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

const (
	// tokenDirName is the subdirectory of the app config directory that
	// holds one token file per authorized server.
	tokenDirName = "auth"

	// storageKeyLength is how many hex characters of the URL digest form
	// the token file stem.
	storageKeyLength = 16

	// expirySkew is subtracted from a token's lifetime when checking
	// expiry, so tokens about to lapse are treated as already expired.
	expirySkew = 30 * time.Second

	// lockTimeout is the maximum time to wait for a token file lock.
	lockTimeout = 1 * time.Second
)

// TokenSet is the credential payload persisted for one server.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// tokenFile is the on-disk layout of one server's credentials.
type tokenFile struct {
	ServerURL string   `json:"server_url"`
	Tokens    TokenSet `json:"tokens"`
}

// NewTokenSet converts an oauth2 token into the persisted form.
func NewTokenSet(tok *oauth2.Token) TokenSet {
	set := TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}
	if expiry := tokenExpiry(tok); !expiry.IsZero() {
		set.ExpiresAt = expiry.Unix()
		if remaining := time.Until(expiry); remaining > 0 {
			set.ExpiresIn = int64(remaining.Seconds())
		}
	}
	return set
}

// tokenExpiry returns the token's expiry, falling back to the JWT exp claim
// when the token response carried no expires_in. Opaque access tokens yield
// the zero time and the set is treated as never expiring locally.
func tokenExpiry(tok *oauth2.Token) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(tok.AccessToken, jwt.MapClaims{})
	if err != nil {
		logger.Debugf("Access token is not a JWT, recording no expiry: %v", err)
		return time.Time{}
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Token converts the persisted form back into an oauth2 token.
func (t TokenSet) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresAt != 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}

// Expired reports whether the access token should no longer be reused.
// Tokens without a recorded expiry never expire here; the server rejects
// them if they are stale.
func (t TokenSet) Expired(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return !now.Add(expirySkew).Before(time.Unix(t.ExpiresAt, 0))
}

// StorageKey returns the deterministic file stem for a server URL: a short
// hex prefix of its SHA-256 digest. Two invocations for the same URL always
// land on the same token file.
func StorageKey(serverURL string) string {
	sum := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(sum[:])[:storageKeyLength]
}

// Store persists one token file per server under the application config
// directory. Files are written atomically with 0600 permissions and guarded
// by a sibling lock file during read-modify-write cycles.
type Store struct {
	dir string
}

// NewStore creates a token store rooted at the default location.
func NewStore() *Store {
	return NewStoreWithDir(filepath.Join(xdg.ConfigHome, "hivechat", tokenDirName))
}

// NewStoreWithDir creates a token store rooted at dir. Used by tests and the
// --config-dir override.
func NewStoreWithDir(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the token file path for a server URL.
func (s *Store) Path(serverURL string) string {
	return filepath.Join(s.dir, StorageKey(serverURL)+".json")
}

// Load reads the persisted tokens for a server URL. Returns a wrapped
// hive.ErrNotFound when no tokens have been stored.
func (s *Store) Load(serverURL string) (TokenSet, error) {
	path := s.Path(serverURL)
	data, err := os.ReadFile(path) // #nosec G304: path is derived from a digest
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TokenSet{}, fmt.Errorf("%w: no stored tokens for %s", hive.ErrNotFound, serverURL)
		}
		return TokenSet{}, fmt.Errorf("unable to read token file %s: %w", path, err)
	}

	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return TokenSet{}, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if file.ServerURL != serverURL {
		// A digest-prefix collision or a file moved between machines.
		logger.Warnf("token file %s was stored for %s, not %s; ignoring it", path, file.ServerURL, serverURL)
		return TokenSet{}, fmt.Errorf("%w: no stored tokens for %s", hive.ErrNotFound, serverURL)
	}
	return file.Tokens, nil
}

// Save persists tokens for a server URL, replacing any previous set.
func (s *Store) Save(serverURL string, tokens TokenSet) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("unable to create token directory %s: %w", s.dir, err)
	}

	path := s.Path(serverURL)

	// Use a separate lock file for cross-platform compatibility
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer fileLock.Unlock()

	data, err := json.MarshalIndent(tokenFile{ServerURL: serverURL, Tokens: tokens}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tokens: %w", err)
	}
	if err := fileutils.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", path, err)
	}
	return nil
}

// Delete removes the persisted tokens for a server URL. Removing tokens that
// were never stored is not an error.
func (s *Store) Delete(serverURL string) error {
	err := os.Remove(s.Path(serverURL))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove token file: %w", err)
	}
	return nil
}

// List returns the server URLs with persisted tokens, for `auth status`.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read token directory %s: %w", s.dir, err)
	}

	var urls []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name())) // #nosec G304: directory is app-owned
		if err != nil {
			logger.Debugf("skipping unreadable token file %s: %v", entry.Name(), err)
			continue
		}
		var file tokenFile
		if err := json.Unmarshal(data, &file); err != nil || file.ServerURL == "" {
			logger.Debugf("skipping malformed token file %s", entry.Name())
			continue
		}
		urls = append(urls, file.ServerURL)
	}
	return urls, nil
}
