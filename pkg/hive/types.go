// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package hive

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// This file contains the shared domain types used across the hive subpackages.

// TransportKind represents the wire transport used to reach an MCP server.
type TransportKind string

const (
	// TransportStdio represents a subprocess speaking MCP over stdin/stdout.
	TransportStdio TransportKind = "stdio"

	// TransportSSE represents the HTTP + Server-Sent Events transport.
	TransportSSE TransportKind = "sse"

	// TransportStreamableHTTP represents the streamable HTTP transport.
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// String returns the string representation of the transport kind.
func (k TransportKind) String() string {
	return string(k)
}

// IsNetwork reports whether the transport reaches the server over HTTP.
// Network transports require a URL and are subject to reachability probing.
func (k TransportKind) IsNetwork() bool {
	return k == TransportSSE || k == TransportStreamableHTTP
}

// ParseTransportKind parses a string into a transport kind.
// "streamable" and "http" are accepted as aliases for streamable-http,
// matching what installed-server files in the wild actually contain.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(s) {
	case "stdio":
		return TransportStdio, nil
	case "sse":
		return TransportSSE, nil
	case "streamable-http", "streamable", "http":
		return TransportStreamableHTTP, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTransport, s)
	}
}

// CredentialOAuth is the CredentialHint value that marks a server as requiring
// the interactive OAuth authorization flow. Any other non-empty hint is
// treated as a static bearer token.
const CredentialOAuth = "oauth"

// ServerDescriptor describes one MCP server to connect to. Descriptors are
// constructed once per connection attempt and never mutated afterwards.
type ServerDescriptor struct {
	// Identity is the unique name tools from this server are namespaced
	// under. Either a local alias ("fs") or a registry-hosted name
	// ("@owner/name").
	Identity string

	// Transport selects the wire transport for this server.
	Transport TransportKind

	// URL is the server endpoint. Required for SSE and streamable HTTP,
	// forbidden for stdio.
	URL string

	// LocalPath points at a server script (.py or .js) to launch over stdio.
	// The interpreter is inferred from the extension.
	LocalPath string

	// Command is an explicit executable for stdio servers, used when the
	// server is not a bare script. Resolved against PATH before spawning.
	Command string

	// Args are passed to Command verbatim, except that a --directory value
	// naming a script file is rewritten to the script's parent directory.
	Args []string

	// Env holds additional environment variables for the subprocess.
	Env map[string]string

	// UserConfig carries server-specific settings from the source document.
	// Opaque to the connection machinery.
	UserConfig map[string]any

	// Enabled mirrors the source document's enabled flag. Disabled servers
	// are filtered out during gathering and never reach the dialer.
	Enabled bool

	// CredentialHint selects the authentication strategy: empty for none,
	// CredentialOAuth for the interactive flow, anything else is used as a
	// bearer token.
	CredentialHint string

	// Source records where this descriptor was gathered from, for logging
	// and connection reports. Sources are additive and never deduplicated.
	Source string
}

// Descriptor source labels, recorded during gathering.
const (
	// SourceInstalled marks descriptors from the installed-server store.
	SourceInstalled = "installed"

	// SourceScript marks descriptors built from explicit script paths.
	SourceScript = "script"

	// SourceURL marks descriptors built from explicit server URLs.
	SourceURL = "url"

	// SourceConfigFile marks descriptors parsed from an mcpServers document.
	SourceConfigFile = "config-file"

	// SourceDiscovered marks descriptors found in other MCP clients' configs.
	SourceDiscovered = "discovered"
)

// Validate checks the descriptor invariants: an identity is always required,
// and exactly one of URL or LocalPath/Command is populated depending on the
// transport kind.
func (d ServerDescriptor) Validate() error {
	if d.Identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidDescriptor)
	}
	switch d.Transport {
	case TransportStdio:
		if d.LocalPath == "" && d.Command == "" {
			return fmt.Errorf("%w: stdio server %s requires a script path or command", ErrInvalidDescriptor, d.Identity)
		}
		if d.URL != "" {
			return fmt.Errorf("%w: stdio server %s must not set a URL", ErrInvalidDescriptor, d.Identity)
		}
	case TransportSSE, TransportStreamableHTTP:
		if d.URL == "" {
			return fmt.Errorf("%w: %s server %s requires a URL", ErrInvalidDescriptor, d.Transport, d.Identity)
		}
		if d.LocalPath != "" || d.Command != "" {
			return fmt.Errorf("%w: %s server %s must not set a local command", ErrInvalidDescriptor, d.Transport, d.Identity)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTransport, d.Transport)
	}
	return nil
}

// IsRegistryIdentity reports whether identity follows the registry-hosted
// "@owner/name" naming convention. Registry-hosted endpoints reject generic
// reachability probes and authenticate with the registry API key, so several
// components special-case them.
func IsRegistryIdentity(identity string) bool {
	if !strings.HasPrefix(identity, "@") {
		return false
	}
	owner, name, found := strings.Cut(identity[1:], "/")
	return found && owner != "" && name != ""
}

// AuthKind represents the authentication strategy selected for a server.
type AuthKind string

const (
	// AuthNone sends no credentials.
	AuthNone AuthKind = "none"

	// AuthBearer sends a static bearer token with every request.
	AuthBearer AuthKind = "bearer"

	// AuthOAuth uses tokens from the OAuth authorization-code flow,
	// refreshed and persisted by the token store.
	AuthOAuth AuthKind = "oauth"
)

// String returns the string representation of the auth kind.
func (k AuthKind) String() string {
	return string(k)
}

// AuthContext carries the selected authentication strategy for one connection
// attempt. It is built per server and never shared across servers.
type AuthContext struct {
	// Kind is the selected strategy.
	Kind AuthKind

	// Token is the bearer credential. Set for AuthBearer, and for AuthOAuth
	// as a point-in-time snapshot consumed by header-based transports.
	Token string

	// Client is a pre-authenticated HTTP client whose transport injects and
	// refreshes OAuth tokens. Nil unless Kind is AuthOAuth.
	Client *http.Client
}

// Headers returns the HTTP headers this context contributes to a connection.
// Returns nil when there is nothing to send.
func (a AuthContext) Headers() map[string]string {
	if a.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + a.Token}
}

// Tool is one server tool under its globally unique qualified name.
// Uniqueness comes from namespacing per server, never from deduplication.
type Tool struct {
	// QualifiedName is "{server identity}.{local name}".
	QualifiedName string

	// Name is the server-local tool name, used when invoking the tool on
	// the owning session.
	Name string

	// ServerIdentity names the server this tool belongs to.
	ServerIdentity string

	// Description is the server-provided description prefixed with
	// "[{server identity}] " so merged catalogs stay attributable.
	Description string

	// InputSchema is the JSON Schema for tool arguments.
	InputSchema map[string]any

	// OutputSchema is the JSON Schema for tool output (optional).
	OutputSchema map[string]any
}

// QualifiedToolName builds the namespaced tool name for a server-local name.
func QualifiedToolName(identity, localName string) string {
	return identity + "." + localName
}

// NewTool converts an SDK tool into a namespaced domain tool.
func NewTool(identity string, t mcp.Tool) Tool {
	inputSchema := map[string]any{
		"type": t.InputSchema.Type,
	}
	if t.InputSchema.Properties != nil {
		inputSchema["properties"] = t.InputSchema.Properties
	}
	if len(t.InputSchema.Required) > 0 {
		inputSchema["required"] = t.InputSchema.Required
	}
	if t.InputSchema.Defs != nil {
		inputSchema["$defs"] = t.InputSchema.Defs
	}

	return Tool{
		QualifiedName:  QualifiedToolName(identity, t.Name),
		Name:           t.Name,
		ServerIdentity: identity,
		Description:    fmt.Sprintf("[%s] %s", identity, t.Description),
		InputSchema:    inputSchema,
	}
}

// Session is one live connection to one MCP server. It exists only between a
// successful initialize handshake and teardown, and exclusively owns its
// transport resources.
type Session struct {
	// ServerIdentity names the server this session is connected to.
	ServerIdentity string

	// Client is the owned SDK client. Closed exactly once during teardown.
	Client *mcpclient.Client

	// ProtocolVersion is the version negotiated during initialize.
	ProtocolVersion string

	// Tools is the server's catalog in listing order, already namespaced.
	Tools []Tool

	// SessionID is the server-assigned session identifier. Captured for
	// streamable HTTP only; empty for other transports.
	SessionID string
}

// CallTool invokes a tool by its server-local name.
func (s *Session) CallTool(ctx context.Context, localName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	result, err := s.Client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      localName,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool %q call failed on server %s: %w", localName, s.ServerIdentity, err)
	}
	return result, nil
}

// Close releases the session's transport. Safe to call on a session whose
// client was never established.
func (s *Session) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// OutcomeStatus classifies what happened to one descriptor during a batch
// connect.
type OutcomeStatus string

const (
	// OutcomeConnected means a session was established and its tools merged.
	OutcomeConnected OutcomeStatus = "connected"

	// OutcomeSkipped means the descriptor was filtered out before dialing,
	// for example by a failed reachability probe.
	OutcomeSkipped OutcomeStatus = "skipped"

	// OutcomeFailed means the dial or handshake failed.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome records the fate of one descriptor. Failures are outcomes, not
// errors: one bad server never aborts the batch.
type Outcome struct {
	// Identity is the descriptor's identity.
	Identity string

	// Status classifies the outcome.
	Status OutcomeStatus

	// Reason is a human-readable explanation for skipped and failed
	// outcomes. Empty for connected.
	Reason string

	// Err is the underlying error for failed outcomes, suitable for
	// errors.Is classification. Nil for connected and most skips.
	Err error
}

// Result is the outcome of one batch connect: the live sessions keyed by
// server identity, the merged tool set, the per-tool enabled flags, and one
// outcome per descriptor attempted.
type Result struct {
	// Sessions maps server identity to its live session.
	Sessions map[string]*Session

	// Tools is the merged catalog across all connected servers.
	Tools []Tool

	// Enabled maps qualified tool name to its enabled flag. The key set is
	// always exactly the qualified names present in Tools.
	Enabled map[string]bool

	// Outcomes has one entry per gathered descriptor, in attempt order.
	Outcomes []Outcome
}

// ConnectedCount returns how many descriptors produced a live session.
func (r *Result) ConnectedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeConnected {
			n++
		}
	}
	return n
}
