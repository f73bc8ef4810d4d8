// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/hivechat/cmd/hivechat/app/ui"
	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/hub"
)

func newServersCmd() *cobra.Command {
	var serversFile string

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage MCP server definitions",
		Long: `Manage the MCP server definition file (mcp.json).

Definitions added here are connected automatically when a chat session
starts. The file follows the common mcpServers convention, so it can be
shared with other MCP clients; comments and fields written by other tools
are preserved.`,
	}

	cmd.PersistentFlags().StringVar(&serversFile, "servers-file", "", "Path to an mcp.json server definition file")

	cmd.AddCommand(newServersListCmd(&serversFile))
	cmd.AddCommand(newServersAddCmd(&serversFile))
	cmd.AddCommand(newServersRemoveCmd(&serversFile))
	cmd.AddCommand(newServersEnableCmd(&serversFile))
	cmd.AddCommand(newServersDisableCmd(&serversFile))
	cmd.AddCommand(newServersRenameCmd(&serversFile))
	cmd.AddCommand(newServersImportCmd(&serversFile))

	return cmd
}

// openStore resolves the server definition file and opens a store on it.
func openStore(serversFile string) (*hub.Store, error) {
	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return hub.NewStore(serversFilePath(cfg, serversFile))
}

func newServersListCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List defined MCP servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			doc, err := store.Load()
			if err != nil {
				return err
			}

			names, err := store.List()
			if err != nil {
				return err
			}
			rows := make([]ui.ServerRow, 0, len(names))
			for _, name := range names {
				rows = append(rows, serverRow(name, doc.MCPServers[name]))
			}
			return ui.RenderServersTable(rows)
		},
	}
}

// serverRow shapes one definition for display. Transport inference mirrors
// the connection-time rules but degrades to a best guess for broken entries.
func serverRow(name string, entry hub.ServerEntry) ui.ServerRow {
	transport := entry.Type
	target := entry.URL
	if entry.URL == "" {
		target = strings.TrimSpace(entry.Command + " " + strings.Join(entry.Args, " "))
	}
	if transport == "" {
		switch {
		case entry.URL != "" && strings.HasSuffix(strings.TrimSuffix(entry.URL, "/"), "/sse"):
			transport = string(hive.TransportSSE)
		case entry.URL != "":
			transport = string(hive.TransportStreamableHTTP)
		case entry.Command != "":
			transport = string(hive.TransportStdio)
		default:
			transport = "invalid"
		}
	}

	auth := "none"
	switch {
	case entry.Auth == hub.AuthOAuth:
		auth = "oauth"
	case entry.APIKey != "":
		auth = "api key"
	}

	return ui.ServerRow{
		Name:      name,
		Transport: transport,
		Target:    target,
		Auth:      auth,
		Disabled:  entry.Disabled,
	}
}

func newServersAddCmd(serversFile *string) *cobra.Command {
	var entry hub.ServerEntry
	var env []string
	var oauth bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace an MCP server definition",
		Long: `Add an MCP server definition, replacing any existing definition with the
same name. Either --url or --command must be given.

Examples:
  hivechat servers add weather --command uvx --arg weather-mcp
  hivechat servers add search --url https://mcp.example.com/mcp
  hivechat servers add issues --url https://mcp.example.com/sse --oauth`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			if entry.URL == "" && entry.Command == "" {
				return errors.New("either --url or --command is required")
			}
			if entry.URL != "" && entry.Command != "" {
				return errors.New("--url and --command are mutually exclusive")
			}
			if oauth {
				entry.Auth = hub.AuthOAuth
			}
			if len(env) > 0 {
				entry.Env = make(map[string]string, len(env))
				for _, kv := range env {
					key, value, found := strings.Cut(kv, "=")
					if !found || key == "" {
						return fmt.Errorf("invalid --env value %q, expected KEY=VALUE", kv)
					}
					entry.Env[key] = value
				}
			}

			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			if err := store.Upsert(name, entry); err != nil {
				return err
			}
			fmt.Printf("Added server %s to %s\n", name, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&entry.URL, "url", "", "Remote server endpoint URL")
	cmd.Flags().StringVar(&entry.Command, "command", "", "Executable to launch for a stdio server")
	cmd.Flags().StringArrayVar(&entry.Args, "arg", nil, "Argument passed to the command (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "Environment variable for the command as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&entry.Type, "transport", "", "Transport override (stdio, sse, streamable-http)")
	cmd.Flags().StringVar(&entry.APIKey, "api-key", "", "Static bearer credential for the server")
	cmd.Flags().BoolVar(&oauth, "oauth", false, "Authenticate with the interactive OAuth flow")

	return cmd
}

func newServersRemoveCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove an MCP server definition",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed server %s\n", args[0])
			return nil
		},
	}
}

func newServersEnableCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a disabled MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			if err := store.SetDisabled(args[0], false); err != nil {
				return err
			}
			fmt.Printf("Enabled server %s\n", args[0])
			return nil
		},
	}
}

func newServersDisableCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable an MCP server without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			if err := store.SetDisabled(args[0], true); err != nil {
				return err
			}
			fmt.Printf("Disabled server %s\n", args[0])
			return nil
		},
	}
}

func newServersRenameCmd(serversFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-name> <new-name>",
		Short: "Rename an MCP server definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			if err := store.Rename(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed server %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newServersImportCmd(serversFile *string) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import server definitions from other MCP clients",
		Long: `Scan the configuration files of other installed MCP clients (Claude
Desktop, Cursor, VS Code, Windsurf) and copy their server definitions into
the hivechat server file. Existing definitions are kept unless --overwrite
is given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := openStore(*serversFile)
			if err != nil {
				return err
			}
			doc, err := store.Load()
			if err != nil {
				return err
			}

			discovered := hub.DiscoverServers()
			if len(discovered) == 0 {
				fmt.Println("No server definitions found in other clients.")
				return nil
			}

			imported := 0
			for _, ds := range discovered {
				if _, exists := doc.MCPServers[ds.Name]; exists && !overwrite {
					fmt.Printf("Skipping %s (already defined, use --overwrite to replace)\n", ds.Name)
					continue
				}
				if err := store.Upsert(ds.Name, ds.Entry); err != nil {
					return fmt.Errorf("failed to import %s: %w", ds.Name, err)
				}
				fmt.Printf("Imported %s from %s\n", ds.Name, ds.Client)
				imported++
			}
			fmt.Printf("Imported %d server(s) into %s\n", imported, store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing definitions with the imported ones")

	return cmd
}
