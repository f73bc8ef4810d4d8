// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/hivechat/cmd/hivechat/app/ui"
	"github.com/stacklok/hivechat/pkg/chat"
	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/hive/orchestrator"
	"github.com/stacklok/hivechat/pkg/logger"
	"github.com/stacklok/hivechat/pkg/updates"
	"github.com/stacklok/hivechat/pkg/versions"
)

func newChatCmd() *cobra.Command {
	var (
		modelName    string
		scriptPaths  []string
		serverURLs   []string
		serversFile  string
		autoDiscover bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the configured Ollama model.

All enabled MCP servers are connected first and their tools offered to the
model. Extra servers can be added for this session with --server (local
script over stdio) and --url (remote endpoint). Inside the session, type
/help for the available commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources := orchestrator.Sources{
				ScriptPaths:  scriptPaths,
				URLs:         serverURLs,
				AutoDiscover: autoDiscover,
			}
			if !cmd.Flags().Changed("auto-discovery") {
				cfg, err := config.LoadOrCreateConfig()
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				sources.AutoDiscover = cfg.Clients.AutoDiscovery
			}
			return runChat(cmd.Context(), modelName, serversFile, sources)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Ollama model to chat with (overrides the configured model)")
	cmd.Flags().StringArrayVar(&scriptPaths, "server", nil, "Path to a local MCP server script to launch over stdio (repeatable)")
	cmd.Flags().StringArrayVar(&serverURLs, "url", nil, "URL of a remote MCP server (repeatable)")
	cmd.Flags().StringVar(&serversFile, "servers-file", "", "Path to an mcp.json server definition file")
	cmd.Flags().BoolVar(&autoDiscover, "auto-discovery", false, "Also connect to servers found in other MCP clients' configuration files")

	return cmd
}

func runChat(ctx context.Context, modelName, serversFile string, sources orchestrator.Sources) error {
	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	checkForUpdates()

	orch, err := buildOrchestrator(cfg, serversFile, sources)
	if err != nil {
		return err
	}
	defer orch.DisconnectAll()

	result, err := orch.Connect(ctx, orch.Gather(ctx))
	if err != nil {
		return err
	}
	applyPersistedToolStatus(orch, cfg)
	printConnectionSummary(result, orch)

	stdin := bufio.NewScanner(os.Stdin)

	opts := []chat.Option{chat.WithModelName(modelName)}
	if cfg.Chat.ConfirmToolCalls == nil || *cfg.Chat.ConfirmToolCalls {
		opts = append(opts, chat.WithConfirm(confirmToolCall(stdin)))
	}

	driver, err := chat.New(cfg, orch, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Chatting with %s. Type /help for commands, /quit to leave.\n", driver.Model())

	repl := &replState{
		driver: driver,
		orch:   orch,
		result: result,
	}
	for {
		fmt.Print("\n> ")
		if !stdin.Scan() {
			break
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := repl.handleCommand(ctx, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}

		if _, err := driver.Send(ctx, line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
	if err := stdin.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Println("Goodbye.")
	return nil
}

// checkForUpdates performs the periodic update check in the background. It is
// strictly best-effort; failures are only visible at debug level.
func checkForUpdates() {
	if os.Getenv("HIVECHAT_SKIP_UPDATE_CHECK") != "" {
		return
	}
	go func() {
		checker, err := updates.NewUpdateChecker(versions.GetVersionInfo().Version, updates.NewVersionClient())
		if err != nil {
			logger.Debugf("Update check unavailable: %v", err)
			return
		}
		if err := checker.CheckLatestVersion(); err != nil {
			logger.Debugf("Update check failed: %v", err)
		}
	}()
}

// confirmToolCall asks the user to approve one model-issued tool call,
// reading the answer from the shared stdin scanner.
func confirmToolCall(stdin *bufio.Scanner) chat.ConfirmFunc {
	return func(qualifiedName string, arguments map[string]any) bool {
		args, err := json.Marshal(arguments)
		if err != nil {
			args = []byte("{}")
		}
		fmt.Printf("\nThe model wants to call %s with arguments %s\n", qualifiedName, args)
		fmt.Print("Allow? [y/N] ")
		if !stdin.Scan() {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(stdin.Text()))
		return answer == "y" || answer == "yes"
	}
}

func printConnectionSummary(result *hive.Result, orch *orchestrator.Orchestrator) {
	fmt.Printf("Connected to %d server(s), %d tool(s) available (%d enabled).\n",
		result.ConnectedCount(), len(orch.AvailableTools()), len(orch.EnabledTools()))
	for _, outcome := range result.Outcomes {
		if outcome.Status == hive.OutcomeConnected {
			continue
		}
		fmt.Printf("  %s: %s (%s)\n", outcome.Identity, outcome.Status, outcome.Reason)
	}
}

// replState is the mutable state of one interactive session.
type replState struct {
	driver *chat.Driver
	orch   *orchestrator.Orchestrator
	result *hive.Result
}

//nolint:gocyclo // a flat command dispatch reads better than a handler table here
func (r *replState) handleCommand(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	switch command {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		printREPLHelp()
		return false, nil

	case "/reset":
		r.driver.ResetHistory()
		fmt.Println("Conversation history cleared.")
		return false, nil

	case "/reload":
		result, err := r.orch.Reload(ctx)
		if err != nil {
			return false, err
		}
		r.result = result
		printConnectionSummary(result, r.orch)
		return false, nil

	case "/model":
		if len(args) == 0 {
			fmt.Printf("Current model: %s\n", r.driver.Model())
			return false, nil
		}
		r.driver.SetModel(args[0])
		fmt.Printf("Switched to model %s.\n", args[0])
		return false, nil

	case "/models":
		names, err := r.driver.Models(ctx)
		if err != nil {
			return false, err
		}
		for _, name := range names {
			marker := "  "
			if name == r.driver.Model() {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return false, nil

	case "/tools":
		return false, renderCatalog(r.orch)

	case "/enable":
		return false, r.setToolStatus(args, true)

	case "/disable":
		return false, r.setToolStatus(args, false)

	case "/pick":
		return false, r.pickTools()

	case "/servers":
		for _, outcome := range r.result.Outcomes {
			reason := ""
			if outcome.Reason != "" {
				reason = " (" + outcome.Reason + ")"
			}
			fmt.Printf("  %s: %s%s\n", outcome.Identity, outcome.Status, reason)
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s; type /help for the list", command)
	}
}

func (r *replState) setToolStatus(args []string, enabled bool) error {
	if len(args) == 0 {
		return errors.New("a tool name (or 'all') is required")
	}

	if args[0] == "all" {
		if enabled {
			r.orch.EnableAllTools()
		} else {
			r.orch.DisableAllTools()
		}
	} else {
		for _, name := range args {
			if err := r.orch.SetToolStatus(name, enabled); err != nil {
				return err
			}
		}
	}
	return persistToolStatus(r.orch)
}

func (r *replState) pickTools() error {
	tools := r.orch.AvailableTools()
	if len(tools) == 0 {
		fmt.Println("No tools are available.")
		return nil
	}

	picked, confirmed, err := ui.RunToolPicker(tools, r.orch.Enabled())
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Selection cancelled.")
		return nil
	}

	for name, enabled := range picked {
		if err := r.orch.SetToolStatus(name, enabled); err != nil {
			return err
		}
	}
	fmt.Printf("%d of %d tool(s) enabled.\n", len(r.orch.EnabledTools()), len(tools))
	return persistToolStatus(r.orch)
}

func renderCatalog(orch *orchestrator.Orchestrator) error {
	enabled := orch.Enabled()
	tools := orch.AvailableTools()

	rows := make([]ui.ToolRow, 0, len(tools))
	for _, tool := range tools {
		rows = append(rows, ui.ToolRow{
			QualifiedName: tool.QualifiedName,
			Description:   tool.Description,
			Enabled:       enabled[tool.QualifiedName],
		})
	}
	return ui.RenderToolsTable(rows)
}

func printREPLHelp() {
	fmt.Print(`Commands:
  /tools                 List the aggregated tool catalog
  /enable <tool|all>     Enable one or more tools
  /disable <tool|all>    Disable one or more tools
  /pick                  Interactively select enabled tools
  /servers               Show the outcome of each server connection
  /reload                Reconnect to all configured servers
  /model [name]          Show or switch the model
  /models                List models available on the Ollama host
  /reset                 Clear the conversation history
  /quit                  Leave the chat
`)
}
