// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmware/dr-promote/pkg/cliui"
	"github.com/vmware/dr-promote/pkg/plan"
	"github.com/vmware/dr-promote/pkg/promote"
)

// NewCommandPlan shows what a restore would apply and delete. It only
// reads the backup directories.
func NewCommandPlan() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [database...]",
		Short: "Show the restore chain and obsolete backups of each database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, needs{})
			if err != nil {
				return err
			}
			defer e.Close()

			orch := &promote.Orchestrator{
				Catalog:  e.catalog,
				Root:     e.cfg.Backup.Root,
				Selected: e.cfg.Backup.Selected,
				Log:      e.log,
			}
			databases := args
			if len(databases) == 0 && interactive {
				candidates, err := orch.Databases(ctx, promote.ModeRestore)
				if err != nil {
					return err
				}
				if databases, err = pickDatabase("Database to plan:", candidates); err != nil {
					return err
				}
			}

			runs, err := orch.DryRun(ctx, databases)
			if err != nil {
				return err
			}
			if output == "text" {
				fmt.Fprint(cmd.OutOrStdout(), cliui.DryRunSummary(runs))
				return nil
			}
			return plan.Write(cmd.OutOrStdout(), output, runs)
		},
	}
}
