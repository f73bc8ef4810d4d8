// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the hivechat command-line application.
package main

import (
	"os"

	"github.com/stacklok/hivechat/cmd/hivechat/app"
	"github.com/stacklok/hivechat/pkg/logger"
)

func main() {
	// Initialize the logger system
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
