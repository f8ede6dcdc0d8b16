// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmware/dr-promote/pkg/cliui"
	"github.com/vmware/dr-promote/pkg/promote"
)

const (
	modeRestore = promote.ModeRestore
	modeOnline  = promote.ModeOnline
	modePromote = promote.ModePromote
)

var modeDescriptions = map[promote.Mode]struct{ short, long string }{
	modeRestore: {
		short: "Restore databases from their backup chains and leave them restoring",
		long: `Restore every database found under the backup root, or the given ones.
For each database the newest full backup, the newest differential and the
newer transaction logs are applied in order with NORECOVERY. Backups made
obsolete by the applied chain are deleted once the whole chain succeeded.`,
	},
	modeOnline: {
		short: "Recover restoring databases and publish their infobases",
		long: `Recover every database in RESTORING state, or the given ones, then create
the 1C infobase for it when missing and publish it on the web server.`,
	},
	modePromote: {
		short: "Restore, recover and publish databases in one run",
		long: `Restore the backup chain of every database, recover it and publish its
1C infobase. When the infobase already exists new sessions are denied and
live sessions are closed for the duration of the restore.`,
	},
}

// NewCommandMode returns the command running the orchestrator in mode.
func NewCommandMode(mode promote.Mode) *cobra.Command {
	desc := modeDescriptions[mode]
	return &cobra.Command{
		Use:   string(mode) + " [database...]",
		Short: desc.short,
		Long:  desc.long,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, needs{sql: true, admin: mode != modeRestore})
			if err != nil {
				return err
			}
			defer e.Close()

			orch, err := e.orchestrator(ctx)
			if err != nil {
				return err
			}

			databases := args
			if len(databases) == 0 && len(e.cfg.Backup.Databases) > 0 {
				if databases = orch.Filter(e.cfg.Backup.Databases); len(databases) == 0 {
					return errors.New("every database in backup.databases is excluded")
				}
			}
			if len(databases) == 0 && interactive {
				candidates, err := orch.Databases(ctx, mode)
				if err != nil {
					return err
				}
				if databases, err = pickDatabase(fmt.Sprintf("Database to %s:", mode), candidates); err != nil {
					return err
				}
			}

			if interactive && mode != modeOnline {
				what := "every database under " + e.cfg.Backup.Root
				if len(databases) > 0 {
					what = strings.Join(databases, ", ")
				}
				ok, err := cliui.Confirm(fmt.Sprintf("%s %s on %s?", strings.ToUpper(string(mode[:1]))+string(mode[1:]), what, e.cfg.SQL.Server))
				if err != nil {
					return err
				}
				if !ok {
					return cliui.ErrCancelled
				}
			}

			printLog("Running %s for %v", mode, databases)
			batch, err := orch.Run(ctx, mode, e.runID, databases)
			if err != nil {
				return err
			}
			return writeBatch(cmd.OutOrStdout(), batch)
		},
	}
}
