// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package hive

import (
	"errors"
	"strings"
)

// Common domain errors used across the hive subpackages.
// These errors should be checked using errors.Is().

var (
	// ErrNotFound indicates a requested entity (tool, session, server) was not found.
	// Wrapping errors should provide specific details about what was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDescriptor indicates a server descriptor violates its invariants,
	// for example a network transport without a URL.
	ErrInvalidDescriptor = errors.New("invalid server descriptor")

	// ErrUnsupportedTransport indicates a transport kind the dialer does not handle.
	ErrUnsupportedTransport = errors.New("unsupported transport type")

	// ErrCommandNotFound indicates a stdio server's executable could not be
	// resolved on PATH. Wrapping errors name the executable.
	ErrCommandNotFound = errors.New("command not found")

	// ErrMissingDirectory indicates a stdio server's working directory does not
	// exist. Wrapping errors name the missing path.
	ErrMissingDirectory = errors.New("directory does not exist")

	// ErrUnreachable indicates a network server failed its reachability probe.
	ErrUnreachable = errors.New("server unreachable")

	// ErrAuthenticationFailed indicates a connect attempt was rejected for
	// missing or invalid credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTimeout indicates an operation exceeded its deadline, such as the
	// bounded wait for an OAuth authorization code.
	ErrTimeout = errors.New("operation timed out")

	// ErrNoSessions indicates an operation that requires at least one live
	// session was invoked with none established.
	ErrNoSessions = errors.New("no server sessions established")
)

// IsAuthenticationError reports whether err looks like an authentication
// failure. Transport and protocol layers surface credential problems as plain
// formatted errors, so after the errors.Is check this falls back to message
// heuristics.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"authentication", "unauthorized", "bearer", "401", "403"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
