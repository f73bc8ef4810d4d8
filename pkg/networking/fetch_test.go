// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testResponse is a sample response type for testing.
type testResponse struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

func TestFetchJSON_SuccessfulGET(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Custom-Header", "test-value")
		_ = json.NewEncoder(w).Encode(testResponse{Message: "hello", Value: 42})
	}))
	defer server.Close()

	ctx := context.Background()
	client := server.Client()

	result, err := FetchJSON[testResponse](ctx, client, server.URL)
	require.NoError(t, err)

	assert.Equal(t, "hello", result.Data.Message)
	assert.Equal(t, 42, result.Data.Value)
	assert.Equal(t, "test-value", result.Headers.Get("X-Custom-Header"))
}

func TestFetchJSON_SuccessfulPOST(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse{Message: "created", Value: 1})
	}))
	defer server.Close()

	ctx := context.Background()
	client := server.Client()

	body := strings.NewReader(`{"input": "test"}`)
	result, err := FetchJSON[testResponse](ctx, client, server.URL,
		WithMethod(http.MethodPost),
		WithHeader("Content-Type", "application/json"),
		WithBody(body),
	)
	require.NoError(t, err)

	assert.Equal(t, "created", result.Data.Message)
	assert.Equal(t, 1, result.Data.Value)
}

func TestFetchJSON_HTTPError4xx(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		statusCode     int
		expectedStatus string
	}{
		{"bad request", http.StatusBadRequest, "400 Bad Request"},
		{"unauthorized", http.StatusUnauthorized, "401 Unauthorized"},
		{"forbidden", http.StatusForbidden, "403 Forbidden"},
		{"not found", http.StatusNotFound, "404 Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				// Write some body content that should NOT appear in error message
				_, _ = w.Write([]byte("sensitive error details"))
			}))
			defer server.Close()

			ctx := context.Background()
			client := server.Client()

			result, err := FetchJSON[testResponse](ctx, client, server.URL)
			assert.Nil(t, result)
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			// Error message should be HTTP status text, not body content
			assert.Equal(t, tt.expectedStatus, httpErr.Message)
			assert.Equal(t, server.URL, httpErr.URL)
			// Verify body content is not leaked
			assert.NotContains(t, httpErr.Message, "sensitive")
		})
	}
}

func TestFetchJSON_HTTPError5xx(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"internal server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
		{"service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("server error"))
			}))
			defer server.Close()

			ctx := context.Background()
			client := server.Client()

			result, err := FetchJSON[testResponse](ctx, client, server.URL)
			assert.Nil(t, result)
			require.Error(t, err)

			assert.True(t, IsHTTPError(err, tt.statusCode))
		})
	}
}

func TestFetchJSON_ContentTypeValidation(t *testing.T) {
	t.Parallel()

	t.Run("valid content type variants accepted", func(t *testing.T) {
		t.Parallel()

		contentTypes := []string{
			"application/json",
			"application/json; charset=utf-8",
			"APPLICATION/JSON",
		}

		for _, ct := range contentTypes {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", ct)
				_ = json.NewEncoder(w).Encode(testResponse{Message: "ok"})
			}))

			_, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL)
			assert.NoError(t, err, "content type %q should be accepted", ct)
			server.Close()
		}
	})

	t.Run("invalid content type rejected", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`{"message": "ok"}`))
		}))
		defer server.Close()

		_, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected content type")
	})

	t.Run("validation can be disabled", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(`{"message": "ok"}`))
		}))
		defer server.Close()

		result, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL,
			WithoutContentTypeValidation())
		require.NoError(t, err)
		assert.Equal(t, "ok", result.Data.Message)
	})
}

func TestFetchJSON_CustomHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		assert.Equal(t, "custom-value", r.Header.Get("X-Extra"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse{Message: "ok"})
	}))
	defer server.Close()

	extra := http.Header{}
	extra.Set("X-Extra", "custom-value")

	_, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL,
		WithHeader("Authorization", "Bearer token123"),
		WithHeaders(extra),
	)
	require.NoError(t, err)
}

func TestFetchJSON_MaxResponseSize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Valid JSON larger than the limit below
		_, _ = w.Write([]byte(`{"message": "` + strings.Repeat("x", 256) + `"}`))
	}))
	defer server.Close()

	_, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL,
		WithMaxResponseSize(16))
	// Truncated body is no longer valid JSON
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestFetchJSON_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse{})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := FetchJSON[testResponse](ctx, server.Client(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFetchJSON_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not valid json`))
	}))
	defer server.Close()

	_, err := FetchJSON[testResponse](context.Background(), server.Client(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestFetchJSON_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := FetchJSON[testResponse](context.Background(), http.DefaultClient, "://bad-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestIsHTTPError_NonHTTPError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsHTTPError(errors.New("plain error"), 0))
	assert.False(t, IsHTTPError(nil, http.StatusNotFound))
	assert.True(t, IsHTTPError(NewHTTPError(http.StatusNotFound, "http://x", "404 Not Found"), http.StatusNotFound))
	assert.True(t, IsHTTPError(NewHTTPError(http.StatusNotFound, "http://x", "404 Not Found"), 0))
	assert.False(t, IsHTTPError(NewHTTPError(http.StatusNotFound, "http://x", "404 Not Found"), http.StatusBadRequest))
}
