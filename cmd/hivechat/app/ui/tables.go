// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"fmt"
	"os"

	v0 "github.com/modelcontextprotocol/registry/pkg/api/v0"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/stacklok/hivechat/pkg/registry"
)

// ServerRow is one row of the installed-servers table.
type ServerRow struct {
	Name      string
	Transport string
	Target    string
	Auth      string
	Disabled  bool
}

// ToolRow is one row of the tools table.
type ToolRow struct {
	QualifiedName string
	Description   string
	Enabled       bool
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	return table
}

func tableOptions(headers []string) []tablewriter.Option {
	return []tablewriter.Option{
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	}
}

// RenderServersTable renders the installed-servers table to stdout.
func RenderServersTable(rows []ServerRow) error {
	if len(rows) == 0 {
		fmt.Println("No servers are defined.")
		return nil
	}

	table := newTable()
	table.Options(tableOptions([]string{"Name", "Transport", "Target", "Auth", "Enabled"})...)

	for _, row := range rows {
		enabled := "✅ Yes"
		if row.Disabled {
			enabled = "❌ No"
		}
		if err := table.Append([]string{
			row.Name,
			row.Transport,
			Truncate(row.Target, 60),
			row.Auth,
			enabled,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// RenderToolsTable renders the aggregated tool catalog to stdout.
func RenderToolsTable(rows []ToolRow) error {
	if len(rows) == 0 {
		fmt.Println("No tools are available.")
		return nil
	}

	table := newTable()
	table.Options(tableOptions([]string{"Tool", "Description", "Enabled"})...)

	for _, row := range rows {
		enabled := "✅ Yes"
		if !row.Enabled {
			enabled = "❌ No"
		}
		if err := table.Append([]string{
			row.QualifiedName,
			Truncate(row.Description, 70),
			enabled,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// RenderSearchTable renders a page of Smithery search results to stdout.
func RenderSearchTable(servers []registry.SmitheryServer) error {
	if len(servers) == 0 {
		fmt.Println("No servers matched the query.")
		return nil
	}

	table := newTable()
	table.Options(tableOptions([]string{"Qualified Name", "Display Name", "Description", "Uses"})...)

	for _, server := range servers {
		if err := table.Append([]string{
			server.QualifiedName,
			server.DisplayName,
			Truncate(server.Description, 60),
			fmt.Sprintf("%d", server.UseCount),
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// RenderRegistryTable renders official MCP registry entries to stdout.
func RenderRegistryTable(servers []*v0.ServerJSON) error {
	if len(servers) == 0 {
		fmt.Println("No servers found in the registry.")
		return nil
	}

	table := newTable()
	table.Options(tableOptions([]string{"Name", "Version", "Description"})...)

	for _, server := range servers {
		if err := table.Append([]string{
			server.Name,
			server.Version,
			Truncate(server.Description, 60),
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// Truncate shortens a string to maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
