// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHttpClientBuilder(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()
	require.NotNil(t, builder)
	assert.Equal(t, HttpTimeout, builder.clientTimeout)
	assert.False(t, builder.allowPrivate)
}

func TestHttpClientBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("default build succeeds", func(t *testing.T) {
		t.Parallel()
		client, err := NewHttpClientBuilder().Build()
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.Equal(t, HttpTimeout, client.Timeout)
	})

	t.Run("custom timeout applied", func(t *testing.T) {
		t.Parallel()
		client, err := NewHttpClientBuilder().WithTimeout(5 * time.Second).Build()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, client.Timeout)
	})

	t.Run("missing CA bundle fails", func(t *testing.T) {
		t.Parallel()
		_, err := NewHttpClientBuilder().WithCABundle("/nonexistent/ca.pem").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read CA certificate bundle")
	})

	t.Run("invalid CA bundle fails", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a pem"), 0o600))

		_, err := NewHttpClientBuilder().WithCABundle(path).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse CA certificate bundle")
	})
}

func TestValidatingTransport_RoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-HTTPS URLs", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: &ValidatingTransport{Transport: http.DefaultTransport}}
		//nolint:noctx // test helper request
		resp, err := client.Get(server.URL) // httptest server is plain HTTP
		if resp != nil {
			_ = resp.Body.Close()
		}
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not HTTPS")
	})

	t.Run("allows HTTPS URLs", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		base := server.Client().Transport
		client := &http.Client{Transport: &ValidatingTransport{Transport: base}}
		//nolint:noctx // test helper request
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAddressReferencesPrivateIp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		address   string
		expectErr bool
	}{
		{"public IPv4", "8.8.8.8:443", false},
		{"loopback", "127.0.0.1:443", true},
		{"rfc1918 10/8", "10.1.2.3:80", true},
		{"rfc1918 172.16/12", "172.16.0.1:80", true},
		{"rfc1918 192.168/16", "192.168.1.1:443", true},
		{"link local", "169.254.1.1:80", true},
		{"shared address space", "100.64.0.1:80", true},
		{"IPv6 loopback", "[::1]:443", true},
		{"IPv6 public", "[2001:4860:4860::8888]:443", false},
		{"not an IP", "example.com:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := AddressReferencesPrivateIp(tt.address)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
