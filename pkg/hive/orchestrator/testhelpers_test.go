// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/hivechat/pkg/hive"
)

// stubConfig is a canned ConfigProvider.
type stubConfig struct {
	servers []hive.ServerDescriptor
	apiKey  string
	err     error
}

func (s *stubConfig) InstalledServers() ([]hive.ServerDescriptor, error) {
	return s.servers, s.err
}

func (s *stubConfig) RegistryAPIKey() string {
	return s.apiKey
}

// stubAuth selects AuthNone for everything, or fails outright.
type stubAuth struct {
	err error
}

func (s stubAuth) Select(_ context.Context, _, _, _ string) (hive.AuthContext, error) {
	if s.err != nil {
		return hive.AuthContext{}, s.err
	}
	return hive.AuthContext{Kind: hive.AuthNone}, nil
}

// fakeDialer hands out sessions without opening any transport. Tools per
// identity are configured up front; identities listed in errs fail to dial.
type fakeDialer struct {
	mu     sync.Mutex
	dialed []string
	errs   map[string]error
	tools  map[string][]string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		errs:  make(map[string]error),
		tools: make(map[string][]string),
	}
}

func (f *fakeDialer) dial(_ context.Context, desc hive.ServerDescriptor, _ hive.AuthContext) (*hive.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dialed = append(f.dialed, desc.Identity)
	if err := f.errs[desc.Identity]; err != nil {
		return nil, err
	}

	sess := &hive.Session{
		ServerIdentity:  desc.Identity,
		ProtocolVersion: "2025-03-26",
	}
	for _, name := range f.tools[desc.Identity] {
		sess.Tools = append(sess.Tools, hive.Tool{
			QualifiedName:  hive.QualifiedToolName(desc.Identity, name),
			Name:           name,
			ServerIdentity: desc.Identity,
			Description:    fmt.Sprintf("[%s] %s tool", desc.Identity, name),
		})
	}
	return sess, nil
}

func (f *fakeDialer) dialedIdentities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dialed...)
}

func stdioDescriptor(identity string) hive.ServerDescriptor {
	return hive.ServerDescriptor{
		Identity:  identity,
		Transport: hive.TransportStdio,
		Command:   "sh",
		Enabled:   true,
	}
}

func httpDescriptor(identity, serverURL string) hive.ServerDescriptor {
	return hive.ServerDescriptor{
		Identity:  identity,
		Transport: hive.TransportStreamableHTTP,
		URL:       serverURL,
		Enabled:   true,
	}
}

// unreachableURL returns a URL on a port that was just closed, so probes
// against it are refused immediately.
func unreachableURL(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr + "/mcp"
}

// outcomesByIdentity indexes outcomes for assertion convenience. Duplicate
// identities keep the last outcome.
func outcomesByIdentity(outcomes []hive.Outcome) map[string]hive.Outcome {
	out := make(map[string]hive.Outcome, len(outcomes))
	for _, o := range outcomes {
		out[o.Identity] = o
	}
	return out
}
