// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vmware/dr-promote/pkg/plan"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// BatchSummary renders one line per database followed by its steps.
func BatchSummary(batch *plan.BatchReport) string {
	var b strings.Builder
	ok, failed := batch.Count()
	b.WriteString(headerStyle.Render(fmt.Sprintf("Run %s: %d succeeded, %d failed", batch.RunID, ok, failed)))
	b.WriteString("\n")
	for _, r := range batch.Reports {
		status := okStyle.Render("OK")
		if !r.OK() {
			status = failStyle.Render("FAILED")
		}
		fmt.Fprintf(&b, "%-6s %s %s\n", status, r.Database, dimStyle.Render(r.Duration))
		for _, step := range r.Steps {
			if step.Error != "" {
				fmt.Fprintf(&b, "  %s %s\n", step.Task, failStyle.Render(step.Error))
				continue
			}
			fmt.Fprintf(&b, "  %s %s\n", step.Task, dimStyle.Render(step.Output))
		}
		if !r.OK() && len(r.Steps) == 0 {
			fmt.Fprintf(&b, "  %s\n", failStyle.Render(r.Error))
		}
	}
	return b.String()
}

// DryRunSummary renders what a restore would apply and delete.
func DryRunSummary(runs []plan.DryRun) string {
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(headerStyle.Render(run.Database))
		b.WriteString("\n")
		if run.Error != "" {
			fmt.Fprintf(&b, "  %s\n", failStyle.Render(run.Error))
			continue
		}
		if run.Plan.Empty() {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render("nothing to restore"))
		}
		for _, a := range run.Plan.Restore {
			fmt.Fprintf(&b, "  restore %s %s %s\n", a.Name, a.Tier, dimStyle.Render(humanize.Bytes(uint64(a.Size))))
		}
		for _, a := range run.Plan.Delete {
			fmt.Fprintf(&b, "  delete  %s %s\n", a.Name, dimStyle.Render(a.Tier.String()))
		}
	}
	return b.String()
}
