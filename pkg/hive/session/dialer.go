// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session establishes MCP sessions over the supported transports.
//
// Dial turns a server descriptor plus a resolved authentication context into
// a live session: it builds the transport (stdio subprocess, SSE, or
// streamable HTTP), runs the Initialize handshake, and fetches the server's
// tool catalog. The returned session owns its transport; callers end it with
// Close.
package session

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/hivechat/pkg/fileutils"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/networking"
	"github.com/stacklok/hivechat/pkg/versions"
)

const (
	// mcpProtocolVersionHeader is sent on every HTTP-based MCP request so
	// servers can negotiate before the Initialize handshake.
	mcpProtocolVersionHeader = "MCP-Protocol-Version"
	mcpProtocolVersion       = "2025-03-26"

	// clientName identifies this client in the Initialize handshake.
	clientName = "hivechat"
)

// interpreters maps script extensions to launch command candidates, in
// preference order. Some platforms only ship a versioned python binary.
var interpreters = map[string][]string{
	".py": {"python", "python3"},
	".js": {"node"},
}

// Dial connects to the server a descriptor names, runs the Initialize
// handshake, and returns the established session with its tool catalog.
// The context bounds the handshake only; the transport itself lives until
// Session.Close.
func Dial(ctx context.Context, desc hive.ServerDescriptor, authCtx hive.AuthContext) (*hive.Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	var (
		c   *mcpclient.Client
		err error
	)
	switch desc.Transport {
	case hive.TransportStdio:
		c, err = newStdioClient(desc)
	case hive.TransportSSE:
		c, err = newSSEClient(desc, authCtx)
	case hive.TransportStreamableHTTP:
		c, err = newStreamableHTTPClient(desc, authCtx)
	default:
		return nil, fmt.Errorf("%w: %s", hive.ErrUnsupportedTransport, desc.Transport)
	}
	if err != nil {
		return nil, err
	}

	// Start the transport with context.Background() so its lifetime is bound
	// to Session.Close rather than to the dial context. Without this the SSE
	// read goroutine dies as soon as the caller's connect timeout fires.
	if err := c.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start %s transport for %s: %w", desc.Transport, desc.Identity, err)
	}

	sess, err := initialize(ctx, c, desc)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return sess, nil
}

// initialize runs the MCP handshake and fetches the tool catalog when the
// server advertises tool support.
func initialize(ctx context.Context, c *mcpclient.Client, desc hive.ServerDescriptor) (*hive.Session, error) {
	result, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: versions.Version,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize failed for %s: %w", desc.Identity, err)
	}

	sess := &hive.Session{
		ServerIdentity:  desc.Identity,
		Client:          c,
		ProtocolVersion: result.ProtocolVersion,
	}

	if result.Capabilities.Tools != nil {
		toolsResult, listErr := c.ListTools(ctx, mcp.ListToolsRequest{})
		if listErr != nil {
			return nil, fmt.Errorf("list tools failed for %s: %w", desc.Identity, listErr)
		}
		for _, t := range toolsResult.Tools {
			sess.Tools = append(sess.Tools, hive.NewTool(desc.Identity, t))
		}
	}

	// Streamable-HTTP servers assign a session ID via the Mcp-Session-Id
	// response header during Initialize; the transport captures it. SSE and
	// stdio sessions have no server-assigned ID.
	if sh, ok := c.GetTransport().(*mcptransport.StreamableHTTP); ok {
		sess.SessionID = sh.GetSessionId()
	}

	logger.Debugf("Connected to %s over %s (%d tools, protocol %s)",
		desc.Identity, desc.Transport, len(sess.Tools), sess.ProtocolVersion)
	return sess, nil
}

// newStdioClient builds a client that speaks MCP to a spawned subprocess.
func newStdioClient(desc hive.ServerDescriptor) (*mcpclient.Client, error) {
	command, args, err := stdioCommand(desc)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveCommand(command...)
	if err != nil {
		return nil, fmt.Errorf("%w (needed to launch %s)", err, desc.Identity)
	}

	env := make([]string, 0, len(desc.Env))
	for k, v := range desc.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	return mcpclient.NewClient(mcptransport.NewStdio(resolved, env, args...)), nil
}

// stdioCommand resolves the launch command candidates and arguments for a
// stdio server: the configured command with normalized args, or an inferred
// interpreter for a bare script path.
func stdioCommand(desc hive.ServerDescriptor) ([]string, []string, error) {
	if desc.Command != "" {
		args, err := normalizeArgs(desc.Args)
		if err != nil {
			return nil, nil, err
		}
		return []string{desc.Command}, args, nil
	}

	ext := strings.ToLower(filepath.Ext(desc.LocalPath))
	candidates, ok := interpreters[ext]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no interpreter known for %s", hive.ErrInvalidDescriptor, desc.LocalPath)
	}
	return candidates, append([]string{desc.LocalPath}, desc.Args...), nil
}

// resolveCommand returns the first candidate found on PATH. Checking before
// spawning turns a cryptic subprocess startup failure into a clear error.
func resolveCommand(candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", hive.ErrCommandNotFound, strings.Join(candidates, ", "))
}

// normalizeArgs rewrites `--directory` values that point at a script file to
// the script's parent directory, and fails fast when the directory does not
// exist. Launchers like uv abort on both misconfigurations with errors that
// do not name the offending path.
func normalizeArgs(args []string) ([]string, error) {
	out := make([]string, len(args))
	copy(out, args)

	for i := 0; i < len(out)-1; i++ {
		if out[i] != "--directory" {
			continue
		}
		dir, err := fileutils.NormalizeDirectoryArg(out[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: --directory %s", hive.ErrMissingDirectory, dir)
		}
		if dir != out[i+1] {
			logger.Warnf("--directory %s names a script file; using %s", out[i+1], dir)
			out[i+1] = dir
		}
	}
	return out, nil
}

// newStreamableHTTPClient builds a client for a streamable-HTTP server.
// Each MCP call is one bounded request/response pair, so both the client
// timeout and the per-request SDK timeout apply.
func newStreamableHTTPClient(desc hive.ServerDescriptor, authCtx hive.AuthContext) (*mcpclient.Client, error) {
	c, err := mcpclient.NewStreamableHttpClient(
		desc.URL,
		mcptransport.WithHTTPTimeout(networking.HttpTimeout),
		mcptransport.WithHTTPBasicClient(newHTTPClient(authCtx, true)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable-http client for %s: %w", desc.Identity, err)
	}
	return c, nil
}

// newSSEClient builds a client for an SSE server. The whole session is one
// long-lived response body, so no overall client timeout is set; a timeout
// there would sever the stream mid-session.
func newSSEClient(desc hive.ServerDescriptor, authCtx hive.AuthContext) (*mcpclient.Client, error) {
	c, err := mcpclient.NewSSEMCPClient(
		desc.URL,
		mcptransport.WithHTTPClient(newHTTPClient(authCtx, false)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sse client for %s: %w", desc.Identity, err)
	}
	return c, nil
}

// newHTTPClient builds the HTTP client for an HTTP-based transport. The
// protocol version header rides on every request; authentication comes
// either from the selector's pre-built OAuth client (refresh-capable) or
// from static bearer headers.
func newHTTPClient(authCtx hive.AuthContext, withTimeout bool) *http.Client {
	headers := map[string]string{mcpProtocolVersionHeader: mcpProtocolVersion}

	base := http.RoundTripper(http.DefaultTransport)
	if authCtx.Client != nil && authCtx.Client.Transport != nil {
		base = authCtx.Client.Transport
	} else {
		for k, v := range authCtx.Headers() {
			headers[k] = v
		}
	}

	client := &http.Client{Transport: &headerRoundTripper{base: base, headers: headers}}
	if withTimeout {
		client.Timeout = networking.HttpTimeout
	}
	return client
}

// headerRoundTripper injects fixed headers into every outgoing request.
// Requests are cloned before mutation; headers already present win.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
