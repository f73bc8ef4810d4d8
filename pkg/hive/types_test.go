// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package hive

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransportKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    TransportKind
		wantErr bool
	}{
		{name: "stdio", input: "stdio", want: TransportStdio},
		{name: "sse", input: "sse", want: TransportSSE},
		{name: "streamable-http", input: "streamable-http", want: TransportStreamableHTTP},
		{name: "legacy streamable alias", input: "streamable", want: TransportStreamableHTTP},
		{name: "http alias", input: "http", want: TransportStreamableHTTP},
		{name: "uppercase", input: "SSE", want: TransportSSE},
		{name: "unknown", input: "websocket", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTransportKind(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedTransport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerDescriptorValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor ServerDescriptor
		wantErr    error
	}{
		{
			name: "valid stdio with script",
			descriptor: ServerDescriptor{
				Identity:  "fs",
				Transport: TransportStdio,
				LocalPath: "/opt/servers/fs.py",
			},
		},
		{
			name: "valid stdio with command",
			descriptor: ServerDescriptor{
				Identity:  "fetch",
				Transport: TransportStdio,
				Command:   "uvx",
				Args:      []string{"mcp-server-fetch"},
			},
		},
		{
			name: "valid sse",
			descriptor: ServerDescriptor{
				Identity:  "remote",
				Transport: TransportSSE,
				URL:       "http://localhost:8000/sse",
			},
		},
		{
			name: "valid streamable http",
			descriptor: ServerDescriptor{
				Identity:  "remote",
				Transport: TransportStreamableHTTP,
				URL:       "https://example.com/mcp",
			},
		},
		{
			name: "missing identity",
			descriptor: ServerDescriptor{
				Transport: TransportStdio,
				Command:   "uvx",
			},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name: "stdio without command or script",
			descriptor: ServerDescriptor{
				Identity:  "fs",
				Transport: TransportStdio,
			},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name: "stdio with URL",
			descriptor: ServerDescriptor{
				Identity:  "fs",
				Transport: TransportStdio,
				Command:   "uvx",
				URL:       "http://localhost:8000",
			},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name: "sse without URL",
			descriptor: ServerDescriptor{
				Identity:  "remote",
				Transport: TransportSSE,
			},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name: "streamable http with command",
			descriptor: ServerDescriptor{
				Identity:  "remote",
				Transport: TransportStreamableHTTP,
				URL:       "https://example.com/mcp",
				Command:   "uvx",
			},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name: "unknown transport",
			descriptor: ServerDescriptor{
				Identity:  "remote",
				Transport: TransportKind("websocket"),
				URL:       "wss://example.com",
			},
			wantErr: ErrUnsupportedTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.descriptor.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIsRegistryIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		identity string
		want     bool
	}{
		{identity: "@acme/remote", want: true},
		{identity: "@smithery-ai/fetch", want: true},
		{identity: "fs", want: false},
		{identity: "@", want: false},
		{identity: "@acme", want: false},
		{identity: "@acme/", want: false},
		{identity: "@/remote", want: false},
		{identity: "acme/remote", want: false},
		{identity: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsRegistryIdentity(tt.identity))
		})
	}
}

func TestNewTool(t *testing.T) {
	t.Parallel()

	sdkTool := mcp.Tool{
		Name:        "read_file",
		Description: "Read a file from disk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{"type": "string"},
			},
			Required: []string{"path"},
		},
	}

	tool := NewTool("fs", sdkTool)

	assert.Equal(t, "fs.read_file", tool.QualifiedName)
	assert.Equal(t, "read_file", tool.Name)
	assert.Equal(t, "fs", tool.ServerIdentity)
	assert.Equal(t, "[fs] Read a file from disk", tool.Description)
	assert.Equal(t, "object", tool.InputSchema["type"])
	require.Contains(t, tool.InputSchema, "properties")
	assert.Equal(t, []string{"path"}, tool.InputSchema["required"])
	assert.Nil(t, tool.OutputSchema)
}

func TestAuthContextHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, AuthContext{Kind: AuthNone}.Headers())
	assert.Equal(t,
		map[string]string{"Authorization": "Bearer tok-123"},
		AuthContext{Kind: AuthBearer, Token: "tok-123"}.Headers(),
	)
}

func TestResultConnectedCount(t *testing.T) {
	t.Parallel()

	r := &Result{
		Outcomes: []Outcome{
			{Identity: "fs", Status: OutcomeConnected},
			{Identity: "@acme/remote", Status: OutcomeSkipped, Reason: "unreachable"},
			{Identity: "broken", Status: OutcomeFailed, Reason: "command not found"},
			{Identity: "git", Status: OutcomeConnected},
		},
	}

	assert.Equal(t, 2, r.ConnectedCount())
}
