// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the hivechat command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/hivechat/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "hivechat",
	DisableAutoGenTag: true,
	Short:             "hivechat is a terminal chat client for Ollama models with MCP tool support",
	Long: `hivechat is a terminal chat client for local Ollama models with MCP (Model Context Protocol) tool support.

It connects to any number of MCP servers over stdio, SSE, or streamable HTTP,
aggregates their tools into one catalog, and lets the model call them during
an interactive conversation. Server definitions live in a standard mcp.json
file and can also be discovered from other installed MCP clients.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the hivechat CLI.
func NewRootCmd() *cobra.Command {
	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		// Re-initialize so --debug takes effect for everything below.
		logger.Initialize()
	}

	// Add subcommands
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newServersCmd())
	rootCmd.AddCommand(newRegistryCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
