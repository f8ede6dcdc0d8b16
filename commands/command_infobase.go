// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmware/dr-promote/pkg/cliui"
)

// NewCommandDrain denies new sessions on an infobase, closes the live ones
// and lifts the locks again.
func NewCommandDrain() *cobra.Command {
	return &cobra.Command{
		Use:   "drain <infobase>",
		Short: "Close every session of an infobase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, needs{admin: true})
			if err != nil {
				return err
			}
			defer e.Close()

			target, ok := e.admin.DrainTarget(args[0])
			if !ok {
				return fmt.Errorf("infobase %s is not registered in cluster %s", args[0], e.admin.Cluster())
			}
			if err := e.drainer.Drain(ctx, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Infobase %s drained\n", args[0])
			return nil
		},
	}
}

// NewCommandRestoreInfobase loads a .dt dump into an infobase while its
// sessions are drained.
func NewCommandRestoreInfobase() *cobra.Command {
	return &cobra.Command{
		Use:   "restore-ib <infobase> <file.dt>",
		Short: "Restore an infobase from a .dt dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, needs{admin: true})
			if err != nil {
				return err
			}
			defer e.Close()

			name, file := args[0], args[1]
			if interactive {
				ok, err := cliui.Confirm(fmt.Sprintf("Replace the content of infobase %s with %s?", name, file))
				if err != nil {
					return err
				}
				if !ok {
					return cliui.ErrCancelled
				}
			}
			if err := e.admin.RestoreDT(ctx, e.drainer, name, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Infobase %s restored from %s\n", name, file)
			return nil
		},
	}
}
