// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage OAuth credentials for remote MCP servers",
		Long: `Manage the OAuth credentials used to connect to remote MCP servers.

Tokens obtained here are stored per server URL and reused (and refreshed)
automatically whenever a server with auth "oauth" is connected.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var flowConfig auth.Config

	cmd := &cobra.Command{
		Use:   "login <server-url>",
		Short: "Authorize against a remote MCP server",
		Long: `Run the OAuth authorization flow for a remote MCP server.

The authorization endpoints are discovered from the server URL and a client
is registered dynamically unless --client-id is given. The browser opens on
the authorization page; paste the resulting code back into the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := args[0]

			cfg, err := config.LoadOrCreateConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if flowConfig.CallbackPort == 0 {
				flowConfig.CallbackPort = cfg.Auth.CallbackPort
			}

			flow, err := auth.NewFlow(serverURL, flowConfig)
			if err != nil {
				return err
			}

			timeout := time.Duration(cfg.Auth.FlowTimeoutMinutes) * time.Minute
			token, err := flow.Authorize(cmd.Context(), os.Stdin, timeout)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			if err := auth.NewStore().Save(serverURL, auth.NewTokenSet(token)); err != nil {
				return err
			}
			fmt.Printf("Authorized against %s\n", serverURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowConfig.ClientID, "client-id", "", "OAuth client ID (default: register dynamically)")
	cmd.Flags().StringVar(&flowConfig.ClientSecret, "client-secret", "", "OAuth client secret")
	cmd.Flags().StringVar(&flowConfig.AuthURL, "auth-url", "", "Authorization endpoint (default: discovered)")
	cmd.Flags().StringVar(&flowConfig.TokenURL, "token-url", "", "Token endpoint (default: discovered)")
	cmd.Flags().StringSliceVar(&flowConfig.Scopes, "scope", nil, "OAuth scope to request (repeatable)")
	cmd.Flags().IntVar(&flowConfig.CallbackPort, "callback-port", 0, "Local port for the OAuth redirect (default: from config)")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers with stored credentials",
		RunE: func(_ *cobra.Command, _ []string) error {
			store := auth.NewStore()
			urls, err := store.List()
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				fmt.Println("No stored credentials.")
				return nil
			}

			now := time.Now()
			for _, serverURL := range urls {
				tokens, err := store.Load(serverURL)
				if err != nil {
					fmt.Printf("  %s: unreadable (%v)\n", serverURL, err)
					continue
				}
				state := "valid"
				switch {
				case tokens.Expired(now) && tokens.RefreshToken != "":
					state = "expired, refreshable"
				case tokens.Expired(now):
					state = "expired"
				case tokens.ExpiresAt != 0:
					state = fmt.Sprintf("valid until %s", time.Unix(tokens.ExpiresAt, 0).Format(time.RFC3339))
				}
				fmt.Printf("  %s: %s\n", serverURL, state)
			}
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <server-url>",
		Short: "Delete the stored credentials for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := auth.NewStore().Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed credentials for %s\n", args[0])
			return nil
		},
	}
}
