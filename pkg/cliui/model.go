// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	quitTextStyle = lipgloss.NewStyle().Margin(1, 0, 2, 4)
	questionStyle = lipgloss.NewStyle().Bold(true)
)

type selectModel struct {
	list     list.Model
	index    int
	choice   string
	quitting bool
}

func (m *selectModel) Init() tea.Cmd {
	return nil
}

func (m *selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if i, ok := m.list.SelectedItem().(item); ok {
				m.index = m.list.Index()
				m.choice = string(i)
			}
			return m, tea.Quit
		}

		// 'q' behaves like ctrl+c and ESC.
		if msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *selectModel) View() string {
	if m.choice != "" {
		return quitTextStyle.Render("Selected " + m.choice)
	}
	if m.quitting {
		return quitTextStyle.Render("Selection cancelled.")
	}
	return "\n" + m.list.View()
}

// confirmModel asks a yes/no question. Anything but y or yes is a no.
type confirmModel struct {
	question string
	input    string
	answered bool
	yes      bool
}

func (m *confirmModel) Init() tea.Cmd {
	return nil
}

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEscape:
		m.answered = true
		return m, tea.Quit
	case tea.KeyEnter:
		answer := strings.ToLower(strings.TrimSpace(m.input))
		m.yes = answer == "y" || answer == "yes"
		m.answered = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		m.input += string(key.Runes)
	}
	return m, nil
}

func (m *confirmModel) View() string {
	if m.answered {
		return ""
	}
	return questionStyle.Render(m.question) + " [y/N]: " + m.input
}
