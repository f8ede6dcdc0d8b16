// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vmware/dr-promote/version"
)

// NewCommandVersion prints out the version of dr-promote.
func NewCommandVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of " + cliName,
		Run:   versionCommandFunc,
	}
}

func versionCommandFunc(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s version: %s\n", cliName, version.Version)
	fmt.Fprintf(out, "Git SHA: %s\n", version.GitSHA)
	fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	fmt.Fprintf(out, "Go OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
