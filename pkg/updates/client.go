// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package updates

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/stacklok/hivechat/pkg/networking"
)

// VersionClient is an interface for calling the update service API.
type VersionClient interface {
	GetLatestVersion(instanceID string, currentVersion string) (string, error)
}

// NewVersionClient creates a new instance of VersionClient.
func NewVersionClient() VersionClient {
	return &defaultVersionClient{
		versionEndpoint: defaultVersionAPI,
		client:          &http.Client{Timeout: networking.HttpTimeout},
	}
}

type defaultVersionClient struct {
	versionEndpoint string
	client          *http.Client
}

const (
	instanceIDHeader  = "X-Instance-ID"
	userAgentHeader   = "User-Agent"
	defaultVersionAPI = "https://updates.codegate.ai/api/v1/version"
)

// GetLatestVersion asks the update service for the latest released version.
func (d *defaultVersionClient) GetLatestVersion(instanceID string, currentVersion string) (string, error) {
	userAgent := fmt.Sprintf("hivechat/%s", currentVersion)
	if os.Getenv("HIVECHAT_DEV") != "" {
		userAgent += " dev"
	}

	headers := http.Header{}
	headers.Set(instanceIDHeader, instanceID)
	headers.Set(userAgentHeader, userAgent)

	res, err := networking.FetchJSON[struct {
		Version string `json:"version"`
	}](context.Background(), d.client, d.versionEndpoint, networking.WithHeaders(headers))
	if err != nil {
		return "", fmt.Errorf("failed to query update API: %w", err)
	}
	return res.Data.Version, nil
}
