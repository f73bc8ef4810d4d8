// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ui provides terminal UI helpers for the hivechat CLI.
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stacklok/hivechat/pkg/hive"
)

var (
	docStyle          = lipgloss.NewStyle().Margin(1, 2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
)

type pickerModel struct {
	Tools     []hive.Tool
	Cursor    int
	Selected  map[int]struct{}
	Quitting  bool
	Confirmed bool
}

func (*pickerModel) Init() tea.Cmd { return nil }

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "q":
			m.Confirmed = false
			m.Quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Tools)-1 {
				m.Cursor++
			}
		case "a":
			for i := range m.Tools {
				m.Selected[i] = struct{}{}
			}
		case "n":
			m.Selected = make(map[int]struct{})
		case "enter":
			m.Confirmed = true
			m.Quitting = true
			return m, tea.Quit
		case " ":
			if _, ok := m.Selected[m.Cursor]; ok {
				delete(m.Selected, m.Cursor)
			} else {
				m.Selected[m.Cursor] = struct{}{}
			}
		}
	}
	return m, nil
}

func (m *pickerModel) View() string {
	if m.Quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString("Select the tools the model may use:\n\n")
	for i, tool := range m.Tools {
		b.WriteString(renderToolRow(m, i, tool))
	}
	b.WriteString("\nUse ↑/↓ (or j/k) to move, 'space' to toggle, 'a' all, 'n' none, 'enter' to confirm, 'q' to cancel.\n")
	return docStyle.Render(b.String())
}

func renderToolRow(m *pickerModel, i int, tool hive.Tool) string {
	cursor := "  "
	if m.Cursor == i {
		cursor = "> "
	}
	checked := " "
	if _, ok := m.Selected[i]; ok {
		checked = "x"
	}
	row := fmt.Sprintf("%s[%s] %s", cursor, checked, tool.QualifiedName)
	if m.Cursor == i {
		return selectedItemStyle.Render(row) + "\n"
	}
	return itemStyle.Render(row) + "\n"
}

// RunToolPicker runs the interactive tool picker, pre-selecting the currently
// enabled tools. It returns the resulting enabled map keyed by qualified name
// and whether the user confirmed the selection.
func RunToolPicker(tools []hive.Tool, enabled map[string]bool) (map[string]bool, bool, error) {
	model := &pickerModel{
		Tools:    tools,
		Selected: make(map[int]struct{}),
	}
	for i, tool := range tools {
		if enabled[tool.QualifiedName] {
			model.Selected[i] = struct{}{}
		}
	}

	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		return nil, false, err
	}

	m := finalModel.(*pickerModel)
	result := make(map[string]bool, len(tools))
	for i, tool := range tools {
		_, picked := m.Selected[i]
		result[tool.QualifiedName] = picked
	}
	return result, m.Confirmed, nil
}
