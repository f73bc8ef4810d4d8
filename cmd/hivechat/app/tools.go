// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/hivechat/cmd/hivechat/app/ui"
	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive/orchestrator"
)

func newToolsCmd() *cobra.Command {
	var serversFile string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage the aggregated tool catalog",
		Long: `Inspect and manage the tools exposed by the configured MCP servers.

These commands connect to every enabled server to build the catalog, then
persist the per-tool enablement so chat sessions pick it up.`,
	}

	cmd.PersistentFlags().StringVar(&serversFile, "servers-file", "", "Path to an mcp.json server definition file")

	cmd.AddCommand(newToolsListCmd(&serversFile))
	cmd.AddCommand(newToolsEnableCmd(&serversFile))
	cmd.AddCommand(newToolsDisableCmd(&serversFile))
	cmd.AddCommand(newToolsPickCmd(&serversFile))

	return cmd
}

// withCatalog connects to the configured servers, replays the persisted tool
// status, runs fn against the live catalog, and tears everything down.
func withCatalog(ctx context.Context, serversFile string, fn func(*config.Config, *orchestrator.Orchestrator) error) error {
	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	orch, err := buildOrchestrator(cfg, serversFile, orchestrator.Sources{
		AutoDiscover: cfg.Clients.AutoDiscovery,
	})
	if err != nil {
		return err
	}
	defer orch.DisconnectAll()

	if _, err := orch.Connect(ctx, orch.Gather(ctx)); err != nil {
		return err
	}
	applyPersistedToolStatus(orch, cfg)

	return fn(cfg, orch)
}

func newToolsListCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all tools exposed by the configured servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCatalog(cmd.Context(), *serversFile, func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				return renderCatalog(orch)
			})
		},
	}
}

func newToolsEnableCmd(serversFile *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "enable [tool...]",
		Short: "Enable tools by qualified name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setToolStatusCmd(cmd.Context(), *serversFile, args, all, true)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Enable every tool")
	return cmd
}

func newToolsDisableCmd(serversFile *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "disable [tool...]",
		Short: "Disable tools by qualified name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setToolStatusCmd(cmd.Context(), *serversFile, args, all, false)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Disable every tool")
	return cmd
}

func setToolStatusCmd(ctx context.Context, serversFile string, names []string, all, enabled bool) error {
	if !all && len(names) == 0 {
		return errors.New("at least one tool name (or --all) is required")
	}

	return withCatalog(ctx, serversFile, func(_ *config.Config, orch *orchestrator.Orchestrator) error {
		if all {
			if enabled {
				orch.EnableAllTools()
			} else {
				orch.DisableAllTools()
			}
		} else {
			for _, name := range names {
				if err := orch.SetToolStatus(name, enabled); err != nil {
					return err
				}
			}
		}
		if err := persistToolStatus(orch); err != nil {
			return err
		}
		fmt.Printf("%d of %d tool(s) enabled.\n", len(orch.EnabledTools()), len(orch.AvailableTools()))
		return nil
	})
}

func newToolsPickCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Interactively select the enabled tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCatalog(cmd.Context(), *serversFile, func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				tools := orch.AvailableTools()
				if len(tools) == 0 {
					fmt.Println("No tools are available.")
					return nil
				}

				picked, confirmed, err := ui.RunToolPicker(tools, orch.Enabled())
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Selection cancelled.")
					return nil
				}

				for name, enabled := range picked {
					if err := orch.SetToolStatus(name, enabled); err != nil {
						return err
					}
				}
				if err := persistToolStatus(orch); err != nil {
					return err
				}
				fmt.Printf("%d of %d tool(s) enabled.\n", len(orch.EnabledTools()), len(tools))
				return nil
			})
		},
	}
}
