// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package updates contains logic for checking if a newer release of hivechat
// is available.
package updates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

// UpdateChecker is an interface for checking if a new version is available.
type UpdateChecker interface {
	// CheckLatestVersion checks if a new version is available and prints a
	// notice to stderr when it is.
	CheckLatestVersion() error
}

const (
	updateFilePathSuffix = "hivechat/updates.json"
	updateInterval       = 4 * time.Hour
)

// updateFile is the on-disk state of the update checker: a stable anonymous
// instance ID, the last version the API reported, and when it was asked.
type updateFile struct {
	InstanceID    string    `json:"instance_id"`
	LatestVersion string    `json:"latest_version"`
	LastCheck     time.Time `json:"last_check"`
}

// NewUpdateChecker creates a new instance of UpdateChecker.
func NewUpdateChecker(currentVersion string, versionClient VersionClient) (UpdateChecker, error) {
	path, err := xdg.DataFile(updateFilePathSuffix)
	if err != nil {
		return nil, fmt.Errorf("unable to access update file path: %w", err)
	}

	return &defaultUpdateChecker{
		currentVersion: currentVersion,
		updateFilePath: path,
		versionClient:  versionClient,
	}, nil
}

type defaultUpdateChecker struct {
	currentVersion string
	updateFilePath string
	versionClient  VersionClient
}

func (d *defaultUpdateChecker) CheckLatestVersion() error {
	state, err := d.readState()
	if err != nil {
		return err
	}

	// Inside the check interval the previous answer is reused; the notice
	// still fires when we already know an update exists.
	if time.Since(state.LastCheck) < updateInterval {
		notifyIfUpdateAvailable(d.currentVersion, state.LatestVersion)
		return nil
	}

	latestVersion, err := d.versionClient.GetLatestVersion(state.InstanceID, d.currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	notifyIfUpdateAvailable(d.currentVersion, latestVersion)

	state.LatestVersion = latestVersion
	state.LastCheck = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal update state: %w", err)
	}
	if err := os.WriteFile(d.updateFilePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write update state: %w", err)
	}
	return nil
}

// readState loads the update file, minting a fresh instance ID the first
// time around.
func (d *defaultUpdateChecker) readState() (updateFile, error) {
	var state updateFile

	// #nosec G304: file path is not configurable
	raw, err := os.ReadFile(d.updateFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return updateFile{InstanceID: uuid.NewString()}, nil
		}
		return state, fmt.Errorf("failed to read update file: %w", err)
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("failed to deserialize update file: %w", err)
	}
	if state.InstanceID == "" {
		state.InstanceID = uuid.NewString()
	}
	return state, nil
}

func notifyIfUpdateAvailable(current, latest string) {
	// Local builds are never "behind" a release.
	if strings.HasPrefix(current, "build-") {
		return
	}
	if !semver.IsValid(current) {
		current = "v" + current
	}
	if !semver.IsValid(latest) {
		latest = "v" + latest
	}
	if semver.Compare(semver.Canonical(current), semver.Canonical(latest)) < 0 {
		fmt.Fprintf(os.Stderr, "A new version of hivechat is available: %s\nCurrently running: %s\n", latest, current)
	}
}
