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
	"github.com/stacklok/hivechat/pkg/networking"
	"github.com/stacklok/hivechat/pkg/registry"
	"github.com/stacklok/hivechat/pkg/secrets"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Browse and install servers from MCP registries",
		Long: `Browse MCP server registries and install servers from them.

Search and install go against the Smithery registry and need an API key
(see 'hivechat config set-api-key'). The list command reads the official
MCP registry, which needs no credentials.`,
	}

	cmd.AddCommand(newRegistrySearchCmd())
	cmd.AddCommand(newRegistryShowCmd())
	cmd.AddCommand(newRegistryInstallCmd())
	cmd.AddCommand(newRegistryListCmd())

	return cmd
}

// registryHTTPClient builds the HTTP client registry calls go through,
// honoring the configured CA bundle and private-IP policy.
func registryHTTPClient(cfg *config.Config) (networking.HTTPClient, error) {
	return networking.NewHttpClientBuilder().
		WithCABundle(cfg.CACertificatePath).
		WithPrivateIPs(cfg.Registry.AllowPrivateIp).
		Build()
}

func smitheryClient(cfg *config.Config) (*registry.SmitheryClient, error) {
	httpClient, err := registryHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}
	return registry.NewSmitheryClient(
		cfg.Registry.SmitheryURL,
		secrets.GetSmitheryAPIKey(cfg),
		registry.WithHTTPClient(httpClient),
	)
}

func newRegistrySearchCmd() *cobra.Command {
	var (
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the Smithery registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			client, err := smitheryClient(cfg)
			if err != nil {
				return err
			}

			result, err := client.Search(cmd.Context(), strings.Join(args, " "), page, pageSize)
			if err != nil {
				if errors.Is(err, registry.ErrAPIKeyRequired) {
					return errors.New("no Smithery API key configured; set one with 'hivechat config set-api-key'")
				}
				return err
			}

			if err := ui.RenderSearchTable(result.Servers); err != nil {
				return err
			}
			if result.Pagination.TotalPages > 1 {
				fmt.Printf("Page %d of %d (%d result(s) total)\n",
					result.Pagination.CurrentPage, result.Pagination.TotalPages, result.Pagination.TotalCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Result page to fetch")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Results per page")

	return cmd
}

func newRegistryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <qualified-name>",
		Short: "Show details of a registry server",
		Long: `Show details of one registry server.

Names of the form @owner/name are looked up in the Smithery registry;
anything else is looked up in the official MCP registry by its full
reverse-DNS name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			name := args[0]
			if hive.IsRegistryIdentity(name) {
				client, err := smitheryClient(cfg)
				if err != nil {
					return err
				}
				detail, err := client.Server(cmd.Context(), name)
				if err != nil {
					return err
				}
				printSmitheryDetail(detail)
				return nil
			}

			httpClient, err := registryHTTPClient(cfg)
			if err != nil {
				return err
			}
			client, err := registry.NewMCPRegistryClient(cfg.Registry.APIURL, httpClient)
			if err != nil {
				return err
			}
			server, err := client.GetServer(cmd.Context(), name)
			if err != nil {
				return err
			}

			fmt.Printf("Name: %s\n", server.Name)
			if server.Title != "" {
				fmt.Printf("Title: %s\n", server.Title)
			}
			fmt.Printf("Version: %s\n", server.Version)
			fmt.Printf("Description: %s\n", server.Description)
			if server.Repository != nil && server.Repository.URL != "" {
				fmt.Printf("Repository: %s\n", server.Repository.URL)
			}
			for _, remote := range server.Remotes {
				fmt.Printf("Remote: %s (%s)\n", remote.URL, remote.Type)
			}
			return nil
		},
	}
}

func printSmitheryDetail(detail *registry.ServerDetail) {
	fmt.Printf("Name: %s\n", detail.QualifiedName)
	fmt.Printf("Display Name: %s\n", detail.DisplayName)
	fmt.Printf("Description: %s\n", detail.Description)
	if detail.Homepage != "" {
		fmt.Printf("Homepage: %s\n", detail.Homepage)
	}
	if detail.Security != nil {
		passed := "failed"
		if detail.Security.ScanPassed {
			passed = "passed"
		}
		fmt.Printf("Security scan: %s\n", passed)
	}
	if len(detail.Connections) > 0 {
		fmt.Println("Connections:")
		for _, conn := range detail.Connections {
			target := conn.DeploymentURL
			if target == "" {
				target = conn.URL
			}
			fmt.Printf("  - %s %s\n", conn.Type, target)
		}
	}
	if len(detail.Tools) > 0 {
		fmt.Println("Tools:")
		for _, tool := range detail.Tools {
			fmt.Printf("  - %s: %s\n", tool.Name, ui.Truncate(tool.Description, 70))
		}
	}
}

func newRegistryInstallCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "install <qualified-name>",
		Short: "Install a server from the Smithery registry",
		Long: `Install a Smithery registry server into the server definition file.

The server's remote endpoint is added under its qualified name (or the
--name alias) and authenticated with the registry API key at connect time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			client, err := smitheryClient(cfg)
			if err != nil {
				return err
			}

			detail, err := client.Server(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, registry.ErrAPIKeyRequired) {
					return errors.New("no Smithery API key configured; set one with 'hivechat config set-api-key'")
				}
				return err
			}
			if detail.Security != nil && !detail.Security.ScanPassed {
				fmt.Printf("Warning: %s has not passed the registry's security scan.\n", detail.QualifiedName)
			}

			entry, err := entryForConnection(detail)
			if err != nil {
				return err
			}

			name := alias
			if name == "" {
				name = detail.QualifiedName
			}
			store, err := hub.NewStore(serversFilePath(cfg, ""))
			if err != nil {
				return err
			}
			if err := store.Upsert(name, entry); err != nil {
				return err
			}
			fmt.Printf("Installed %s as %s in %s\n", detail.QualifiedName, name, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "name", "", "Local name for the installed server")

	return cmd
}

// entryForConnection picks the first usable remote connection of a registry
// server. Registry-hosted servers are reached over the network; stdio-only
// entries must be added manually with their launch command.
func entryForConnection(detail *registry.ServerDetail) (hub.ServerEntry, error) {
	for _, conn := range detail.Connections {
		url := conn.DeploymentURL
		if url == "" {
			url = conn.URL
		}
		if url == "" {
			continue
		}
		switch conn.Type {
		case "http", "shttp":
			return hub.ServerEntry{URL: url, Type: string(hive.TransportStreamableHTTP)}, nil
		case "sse":
			return hub.ServerEntry{URL: url, Type: string(hive.TransportSSE)}, nil
		}
	}
	return hub.ServerEntry{}, fmt.Errorf("%s has no remote connection; add it manually with 'hivechat servers add'", detail.QualifiedName)
}

func newRegistryListCmd() *cobra.Command {
	var (
		limit int
		query string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers in the official MCP registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			httpClient, err := registryHTTPClient(cfg)
			if err != nil {
				return err
			}
			client, err := registry.NewMCPRegistryClient(cfg.Registry.APIURL, httpClient)
			if err != nil {
				return err
			}

			if query != "" {
				servers, err := client.SearchServers(cmd.Context(), query)
				if err != nil {
					return err
				}
				return ui.RenderRegistryTable(servers)
			}

			servers, err := client.ListServers(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return ui.RenderRegistryTable(servers)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of servers to list (0 for all)")
	cmd.Flags().StringVar(&query, "search", "", "Filter servers by a search term")

	return cmd
}
