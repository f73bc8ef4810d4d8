// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

const (
	// defaultProbeTimeout bounds a single reachability probe.
	defaultProbeTimeout = 5 * time.Second

	// defaultProbeLimit caps concurrent probes.
	defaultProbeLimit = 8
)

// registryHosted reports whether desc points at a registry-hosted server,
// either by its @owner/name identity or by its URL living on the registry
// host. This is a naming heuristic, not a protocol guarantee.
func (o *Orchestrator) registryHosted(desc hive.ServerDescriptor) bool {
	if hive.IsRegistryIdentity(desc.Identity) {
		return true
	}
	return o.registryHost != "" && desc.URL != "" && strings.Contains(desc.URL, o.registryHost)
}

// probeAll checks reachability of every network descriptor concurrently and
// returns the failures keyed by descriptor index. Registry-hosted servers
// are exempt because their endpoints reject generic probes. Connects stay
// sequential; only the probes fan out.
func (o *Orchestrator) probeAll(ctx context.Context, descs []hive.ServerDescriptor) map[int]error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.probeLimit)

	var mu sync.Mutex
	failures := make(map[int]error)

	for i, desc := range descs {
		if !desc.Transport.IsNetwork() || desc.URL == "" {
			continue
		}
		if o.registryHosted(desc) {
			logger.Debugf("Skipping reachability check for registry-hosted server %s", desc.Identity)
			continue
		}
		g.Go(func() error {
			if err := o.headProbe(gctx, desc.URL); err != nil {
				mu.Lock()
				failures[i] = err
				mu.Unlock()
			}
			return nil
		})
	}

	// Probe goroutines record failures instead of returning errors, so Wait
	// cannot fail.
	_ = g.Wait()
	return failures
}

// headProbe issues a bounded HEAD request against serverURL. Any HTTP
// response counts as reachable: a 401 or 404 still proves a listener.
func (o *Orchestrator) headProbe(ctx context.Context, serverURL string) error {
	ctx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, serverURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", hive.ErrUnreachable, err)
	}

	resp, err := o.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", hive.ErrUnreachable, err)
	}
	resp.Body.Close()
	return nil
}
