// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/plan"
	"github.com/vmware/dr-promote/pkg/task"
	"github.com/vmware/dr-promote/pkg/winpath"
)

// identityLayout names new full backups so that they sort after older ones.
const identityLayout = "20060102-150405"

// NewCommandBackup takes a full backup of each database into its backup
// directory.
func NewCommandBackup() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <database>...",
		Short: "Take a full backup of databases into the backup root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, needs{sql: true})
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := e.cfg.Backup
			serverRoot := cfg.ServerRoot
			if serverRoot == "" {
				serverRoot = cfg.Root
			}
			identity := time.Now().Format(identityLayout)

			plans := make([]*plan.ExecutionPlan, 0, len(args))
			for _, database := range args {
				if err := e.catalog.EnsureRoot(e.catalog.DatabaseDir(cfg.Root, database)); err != nil {
					return err
				}
				plans = append(plans, &plan.ExecutionPlan{
					Name:     "backup",
					Database: database,
					Tasks: []task.Task{&task.BackupDatabaseTask{
						SQL:    e.sql,
						Dir:    winpath.Join(serverRoot, database),
						File:   identity,
						Suffix: e.catalog.Suffixes().For(backup.Full),
					}},
				})
			}
			return writeBatch(cmd.OutOrStdout(), plan.Batch(ctx, e.runID, plans, e.log))
		},
	}
}
