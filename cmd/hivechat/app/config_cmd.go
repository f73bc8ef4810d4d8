// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/secrets"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage application configuration",
		Long:  "The config command provides subcommands to manage application configuration settings.",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newSetAPIKeyCmd())
	cmd.AddCommand(newRemoveAPIKeyCmd())
	cmd.AddCommand(newSetRegistryCmd())
	cmd.AddCommand(newSetSmitheryCmd())
	cmd.AddCommand(newUnsetRegistryCmd())
	cmd.AddCommand(newSetServersFileCmd())
	cmd.AddCommand(newSetCACertCmd())
	cmd.AddCommand(newGetCACertCmd())
	cmd.AddCommand(newUnsetCACertCmd())
	cmd.AddCommand(newAutoDiscoveryCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to serialize configuration: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newSetAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-api-key",
		Short: "Store the Smithery registry API key",
		Long: `Store the Smithery registry API key, used to search the registry and to
authenticate against registry-hosted servers. The key is read from the
terminal without echo and stored in the OS keyring when one is available,
otherwise in the config file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Print("Enter the Smithery API key: ")
			key, err := secrets.ReadPassword()
			if err != nil {
				return err
			}

			location, err := secrets.SetSmitheryAPIKey(config.NewDefaultProvider(), string(key))
			if err != nil {
				return err
			}
			fmt.Printf("API key stored in the %s.\n", location)
			return nil
		},
	}
}

func newRemoveAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-api-key",
		Short: "Delete the stored Smithery registry API key",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := secrets.RemoveSmitheryAPIKey(config.NewDefaultProvider()); err != nil {
				return err
			}
			fmt.Println("API key removed.")
			return nil
		},
	}
}

func newSetRegistryCmd() *cobra.Command {
	var allowPrivateRegistryIP bool

	cmd := &cobra.Command{
		Use:   "set-registry <url>",
		Short: "Set the official MCP registry API endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.SetRegistryURL(args[0], allowPrivateRegistryIP); err != nil {
				return err
			}
			fmt.Printf("Successfully set registry API endpoint: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(
		&allowPrivateRegistryIP,
		"allow-private-ip",
		"p",
		false,
		"Allow setting the registry API endpoint even if it references a private IP address (default false)",
	)

	return cmd
}

func newSetSmitheryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-smithery <url>",
		Short: "Set the Smithery registry API endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.SetSmitheryURL(args[0]); err != nil {
				return err
			}
			fmt.Printf("Successfully set Smithery registry endpoint: %s\n", args[0])
			return nil
		},
	}
}

func newUnsetRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset-registry",
		Short: "Reset both registry endpoints to their defaults",
		RunE: func(_ *cobra.Command, _ []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.UnsetRegistry(); err != nil {
				return err
			}
			fmt.Println("Registry endpoints reset to defaults.")
			return nil
		},
	}
}

func newSetServersFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-servers-file <path>",
		Short: "Set the default MCP server definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.SetServersFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Successfully set server definition file: %s\n", filepath.Clean(args[0]))
			return nil
		},
	}
}

func newSetCACertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-ca-cert <path>",
		Short: "Set the CA certificate used for registry connections",
		Long: `Set the CA certificate file used when connecting to registries and remote
servers. This is useful in corporate environments with TLS inspection where
custom CA certificates are required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.SetCACert(args[0]); err != nil {
				return err
			}
			fmt.Printf("Successfully set CA certificate path: %s\n", filepath.Clean(args[0]))
			return nil
		},
	}
}

func newGetCACertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-ca-cert",
		Short: "Get the currently configured CA certificate path",
		RunE: func(_ *cobra.Command, _ []string) error {
			provider := config.NewDefaultProvider()
			certPath, exists, accessible := provider.GetCACert()

			if !exists {
				fmt.Println("No CA certificate is currently configured.")
				return nil
			}
			fmt.Printf("Current CA certificate path: %s\n", certPath)
			if !accessible {
				fmt.Println("Warning: The configured CA certificate file is not accessible")
			}
			return nil
		},
	}
}

func newUnsetCACertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset-ca-cert",
		Short: "Remove the configured CA certificate",
		RunE: func(_ *cobra.Command, _ []string) error {
			provider := config.NewDefaultProvider()
			if err := provider.UnsetCACert(); err != nil {
				return err
			}
			fmt.Println("CA certificate configuration removed.")
			return nil
		},
	}
}

func newAutoDiscoveryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-discovery <enable|disable>",
		Short: "Enable or disable connecting to servers found in other MCP clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var enable bool
			switch args[0] {
			case "enable":
				enable = true
			case "disable":
				enable = false
			default:
				return fmt.Errorf("invalid argument %q, expected 'enable' or 'disable'", args[0])
			}

			err := config.UpdateConfig(func(c *config.Config) {
				c.Clients.AutoDiscovery = enable
			})
			if err != nil {
				return err
			}
			fmt.Printf("Client auto-discovery %sd.\n", args[0])
			return nil
		},
	}
}
