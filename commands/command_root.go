// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

const (
	cliName        = "dr-promote"
	cliDescription = "A tool to promote a passive SQL Server replica and its 1C infobases after a disaster"
)

var validOutputs = []string{"text", "yaml", "json"}

var (
	configFile  string
	verbose     bool
	output      string
	interactive bool

	rootCmd = &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validOutputs, output) {
				return fmt.Errorf("invalid output format %q, valid formats are %v", output, validOutputs)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the configuration file (default dr-promote.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", fmt.Sprintf("report format, valid formats are: %v", validOutputs))
	rootCmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "pick the database and confirm destructive runs interactively")

	rootCmd.AddCommand(
		NewCommandVersion(),
		NewCommandMode(modeRestore),
		NewCommandMode(modeOnline),
		NewCommandMode(modePromote),
		NewCommandPlan(),
		NewCommandDrain(),
		NewCommandRestoreInfobase(),
		NewCommandBackup(),
	)
}

func RootCmd() *cobra.Command {
	return rootCmd
}
