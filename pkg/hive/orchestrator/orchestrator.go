// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives the connection lifecycle for a set of MCP
// servers: it gathers descriptors from every configured source, probes
// reachability, dials each server in turn, and aggregates the resulting
// tools into one catalog. One bad server never aborts the batch; every
// descriptor's fate is recorded as an outcome instead of an error.
package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/hive/aggregator"
	"github.com/stacklok/hivechat/pkg/hive/auth"
	"github.com/stacklok/hivechat/pkg/hive/session"
	"github.com/stacklok/hivechat/pkg/hub"
	"github.com/stacklok/hivechat/pkg/logger"
)

// ConfigProvider is the narrow read-only view over the application
// configuration the orchestrator consumes. It is injected at construction so
// the connection machinery never reaches into shared configuration state.
type ConfigProvider interface {
	// InstalledServers returns descriptors for every entry in the
	// installed-server store, including disabled ones. Gather applies the
	// enabled filter.
	InstalledServers() ([]hive.ServerDescriptor, error)

	// RegistryAPIKey returns the configured registry API key, or empty.
	RegistryAPIKey() string
}

// AuthSelector chooses the authentication strategy for one server.
type AuthSelector interface {
	Select(ctx context.Context, identity, serverURL, hint string) (hive.AuthContext, error)
}

// DialFunc opens a session to a single server. Swapped out in tests.
type DialFunc func(ctx context.Context, desc hive.ServerDescriptor, authCtx hive.AuthContext) (*hive.Session, error)

// Options configures an Orchestrator. The zero value of every field selects
// a sensible default.
type Options struct {
	// Config supplies installed servers and the registry API key. May be
	// nil, in which case the installed-server source is absent.
	Config ConfigProvider

	// Auth selects credentials per server. Nil builds a default selector
	// backed by the on-disk token store and Config's API key.
	Auth AuthSelector

	// Dial opens one session. Nil uses the session dialer.
	Dial DialFunc

	// Sources lists the descriptor sources beyond the installed-server
	// store.
	Sources Sources

	// ParseConfig parses an mcpServers document into descriptors. Nil uses
	// the hub parser.
	ParseConfig func(path string) ([]hive.ServerDescriptor, error)

	// Discover finds servers in other MCP clients' configuration files.
	// Nil uses the hub discoverer.
	Discover func(ctx context.Context) []hive.ServerDescriptor

	// RegistryHost is the registry's domain. URLs containing it bypass the
	// reachability probe and prefer API-key authentication.
	RegistryHost string

	// ProbeTimeout bounds each reachability probe. Defaults to 5 seconds.
	ProbeTimeout time.Duration

	// ProbeLimit caps concurrent reachability probes. Defaults to 8.
	ProbeLimit int

	// ProbeClient issues the probe requests. Defaults to a plain client.
	ProbeClient *http.Client
}

// Orchestrator owns the live session set, the aggregated tool catalog, and
// the per-descriptor outcomes of the most recent connect cycle. Connects are
// sequential; all state is reset by DisconnectAll.
type Orchestrator struct {
	cfg          ConfigProvider
	auth         AuthSelector
	dial         DialFunc
	sources      Sources
	parseConfig  func(string) ([]hive.ServerDescriptor, error)
	discover     func(context.Context) []hive.ServerDescriptor
	registryHost string
	probeTimeout time.Duration
	probeLimit   int
	probeClient  *http.Client

	mu       sync.Mutex
	sessions map[string]*hive.Session
	// opened tracks every session in open order for teardown, including
	// sessions displaced from the map by a duplicate identity.
	opened   []*hive.Session
	catalog  *aggregator.Catalog
	outcomes []hive.Outcome
}

// New creates an orchestrator from opts.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:          opts.Config,
		auth:         opts.Auth,
		dial:         opts.Dial,
		sources:      opts.Sources,
		parseConfig:  opts.ParseConfig,
		discover:     opts.Discover,
		registryHost: opts.RegistryHost,
		probeTimeout: opts.ProbeTimeout,
		probeLimit:   opts.ProbeLimit,
		probeClient:  opts.ProbeClient,
		sessions:     make(map[string]*hive.Session),
		catalog:      aggregator.New(),
	}

	if o.dial == nil {
		o.dial = session.Dial
	}
	if o.auth == nil {
		apiKey := ""
		if o.cfg != nil {
			apiKey = o.cfg.RegistryAPIKey()
		}
		o.auth = auth.NewSelector(auth.NewStore(), auth.Options{
			APIKey:       apiKey,
			RegistryHost: o.registryHost,
		})
	}
	if o.parseConfig == nil {
		o.parseConfig = hub.ParseFile
	}
	if o.discover == nil {
		o.discover = hub.AutoDiscover
	}
	if o.probeTimeout <= 0 {
		o.probeTimeout = defaultProbeTimeout
	}
	if o.probeLimit <= 0 {
		o.probeLimit = defaultProbeLimit
	}
	if o.probeClient == nil {
		o.probeClient = &http.Client{Timeout: o.probeTimeout}
	}
	return o
}

// Connect probes and dials every descriptor, merging the tools of each
// successful session into the catalog. Per-server failures become outcomes,
// never errors; the returned error is non-nil only when the orchestrator
// itself is unusable. With zero successes the result is empty, not nil, and
// the caller continues tool-less.
func (o *Orchestrator) Connect(ctx context.Context, descs []hive.ServerDescriptor) (*hive.Result, error) {
	if o == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connectLocked(ctx, descs)
}

func (o *Orchestrator) connectLocked(ctx context.Context, descs []hive.ServerDescriptor) (*hive.Result, error) {
	if len(descs) == 0 {
		logger.Warnf("No MCP servers specified or all were invalid; continuing without tool support")
		return o.resultLocked(), nil
	}

	probeFailures := o.probeAll(ctx, descs)

	for i, desc := range descs {
		if desc.Transport.IsNetwork() && desc.URL == "" {
			logger.Warnf("Server %s has no URL; skipping", desc.Identity)
			o.outcomes = append(o.outcomes, hive.Outcome{
				Identity: desc.Identity,
				Status:   hive.OutcomeSkipped,
				Reason:   "missing URL",
			})
			continue
		}
		if err, ok := probeFailures[i]; ok {
			logger.Warnf("Server %s failed its reachability check: %v", desc.Identity, err)
			o.outcomes = append(o.outcomes, hive.Outcome{
				Identity: desc.Identity,
				Status:   hive.OutcomeSkipped,
				Reason:   "reachability check failed",
				Err:      err,
			})
			continue
		}
		o.connectOneLocked(ctx, desc)
	}

	if len(o.sessions) == 0 {
		logger.Warnf("Could not connect to any MCP servers; continuing without tools")
	}
	return o.resultLocked(), nil
}

// connectOneLocked dials a single descriptor and records its outcome. Errors
// never propagate: failure isolation is the batch invariant.
func (o *Orchestrator) connectOneLocked(ctx context.Context, desc hive.ServerDescriptor) {
	logger.Infof("Connecting to server %s (%s)", desc.Identity, desc.Transport)

	authCtx, err := o.auth.Select(ctx, desc.Identity, desc.URL, desc.CredentialHint)
	if err != nil {
		o.recordFailureLocked(desc, fmt.Errorf("authentication setup failed: %w", err))
		return
	}

	sess, err := o.dial(ctx, desc, authCtx)
	if err != nil {
		o.recordFailureLocked(desc, err)
		return
	}

	// Duplicate identities are distinct attempts: the newer session takes
	// over the map entry and its tools overwrite under the same qualified
	// names. The displaced session stays in the teardown list.
	o.sessions[sess.ServerIdentity] = sess
	o.opened = append(o.opened, sess)
	o.catalog.Add(sess.Tools...)
	o.outcomes = append(o.outcomes, hive.Outcome{
		Identity: desc.Identity,
		Status:   hive.OutcomeConnected,
	})
	logger.Infof("Connected to %s with %d tools", desc.Identity, len(sess.Tools))
}

func (o *Orchestrator) recordFailureLocked(desc hive.ServerDescriptor, err error) {
	reason := "connection failed"
	if hive.IsAuthenticationError(err) {
		reason = "authentication failed"
		if o.registryHosted(desc) {
			logger.Warnf("Authentication to %s failed: your registry API key may be invalid or expired", desc.Identity)
			logger.Infof("Update it with 'hivechat config set-api-key' and reconnect")
		} else {
			logger.Warnf("Authentication to %s failed: check the server's credentials", desc.Identity)
		}
	} else {
		logger.Warnf("Failed to connect to %s: %v", desc.Identity, err)
	}

	o.outcomes = append(o.outcomes, hive.Outcome{
		Identity: desc.Identity,
		Status:   hive.OutcomeFailed,
		Reason:   reason,
		Err:      err,
	})
}

func (o *Orchestrator) resultLocked() *hive.Result {
	return &hive.Result{
		Sessions: maps.Clone(o.sessions),
		Tools:    o.catalog.List(),
		Enabled:  o.catalog.Enabled(),
		Outcomes: slices.Clone(o.outcomes),
	}
}

// DisconnectAll closes every transport opened since the last reset and
// clears all session, tool, and outcome state, leaving the orchestrator
// ready for a fresh Connect. Idempotent and safe with zero sessions.
func (o *Orchestrator) DisconnectAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnectAllLocked()
}

func (o *Orchestrator) disconnectAllLocked() {
	for _, sess := range o.opened {
		if err := sess.Close(); err != nil {
			logger.Warnf("Failed to close session for %s: %v", sess.ServerIdentity, err)
		}
	}
	o.opened = nil
	o.sessions = make(map[string]*hive.Session)
	o.catalog.Reset()
	o.outcomes = nil
}

// Reload tears down every session and reconnects from freshly gathered
// descriptors. Callers observe it as a single transaction: the lock is held
// across teardown and reconnect, so no half-rebuilt state is visible.
func (o *Orchestrator) Reload(ctx context.Context) (*hive.Result, error) {
	if o == nil {
		return nil, fmt.Errorf("orchestrator is not initialized")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnectAllLocked()
	return o.connectLocked(ctx, o.Gather(ctx))
}

// Sessions returns the live sessions keyed by server identity.
func (o *Orchestrator) Sessions() map[string]*hive.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return maps.Clone(o.sessions)
}

// Session returns the live session for one server identity.
func (o *Orchestrator) Session(identity string) (*hive.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[identity]
	return sess, ok
}

// AvailableTools returns the merged tool catalog in aggregation order.
func (o *Orchestrator) AvailableTools() []hive.Tool {
	return o.catalog.List()
}

// EnabledTools returns the currently enabled tools, the set handed to the
// model.
func (o *Orchestrator) EnabledTools() []hive.Tool {
	return o.catalog.EnabledTools()
}

// Enabled returns a copy of the per-tool enabled map.
func (o *Orchestrator) Enabled() map[string]bool {
	return o.catalog.Enabled()
}

// SetToolStatus flips one tool's enabled flag. Unknown names return
// hive.ErrNotFound; the enabled map's key set never grows here.
func (o *Orchestrator) SetToolStatus(qualifiedName string, enabled bool) error {
	return o.catalog.SetEnabled(qualifiedName, enabled)
}

// EnableAllTools enables every aggregated tool.
func (o *Orchestrator) EnableAllTools() {
	o.catalog.EnableAll()
}

// DisableAllTools disables every aggregated tool.
func (o *Orchestrator) DisableAllTools() {
	o.catalog.DisableAll()
}

// CallTool executes a tool by qualified name through its owning session.
// Routing goes through the catalog, never by re-splitting the qualified
// name, so server identities may contain dots.
func (o *Orchestrator) CallTool(ctx context.Context, qualifiedName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	tool, ok := o.catalog.Get(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("%w: tool %s", hive.ErrNotFound, qualifiedName)
	}

	sess, ok := o.Session(tool.ServerIdentity)
	if !ok {
		return nil, fmt.Errorf("%w: server %s for tool %s", hive.ErrNoSessions, tool.ServerIdentity, qualifiedName)
	}
	return sess.CallTool(ctx, tool.Name, arguments)
}
