// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"fmt"
	"math/rand"
	"net"
)

const (
	// MinPort is the minimum port number to use
	MinPort = 10000
	// MaxPort is the maximum port number to use
	MaxPort = 65535
	// MaxAttempts is the maximum number of attempts to find an available port
	MaxAttempts = 10
)

// IsAvailable checks if a port is available
func IsAvailable(port int) bool {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}

	tcpListener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return false
	}
	_ = tcpListener.Close()
	return true
}

// FindAvailable finds an available port, returning 0 when none could be found.
func FindAvailable() int {
	for i := 0; i < MaxAttempts; i++ {
		port := rand.Intn(MaxPort-MinPort) + MinPort // #nosec G404 - port selection needs no crypto rand
		if IsAvailable(port) {
			return port
		}
	}
	return 0
}

// FindOrUsePort returns the requested port after verifying it is free, or
// finds an available one when the requested port is 0.
func FindOrUsePort(port int) (int, error) {
	if port == 0 {
		found := FindAvailable()
		if found == 0 {
			return 0, fmt.Errorf("no available port found")
		}
		return found, nil
	}
	if !IsAvailable(port) {
		return 0, fmt.Errorf("port %d is not available", port)
	}
	return port, nil
}
