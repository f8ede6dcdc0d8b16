// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth = 20
	listHeight   = 14
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
)

// ErrCancelled is returned when the user leaves a prompt without answering.
var ErrCancelled = errors.New("user cancelled")

func newSelectModel(title string, options []string) *selectModel {
	items := make([]list.Item, 0, len(options))
	for _, option := range options {
		items = append(items, item(option))
	}

	l := list.New(items, itemDelegate{}, defaultWidth, listHeight)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	return &selectModel{list: l, index: -1}
}

// Select displays an interactive menu and returns the zero-based index and
// the value of the chosen option.
//
//	idx, database, err := cliui.Select("Database to promote:", []string{"buh", "zup"})
func Select(title string, options []string, opts ...tea.ProgramOption) (int, string, error) {
	if len(options) == 0 {
		return -1, "", errors.New("no options provided")
	}

	m := newSelectModel(title, options)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return -1, "", fmt.Errorf("error selecting from CLI menu: %w", err)
	}
	if m.quitting || m.index < 0 {
		return -1, "", ErrCancelled
	}
	return m.index, m.choice, nil
}

// Confirm asks a yes/no question on the terminal. Its signature matches
// ssh.Confirm so it can approve unknown host keys.
func Confirm(question string, opts ...tea.ProgramOption) (bool, error) {
	m := &confirmModel{question: question}
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return false, fmt.Errorf("error reading confirmation: %w", err)
	}
	return m.yes, nil
}
