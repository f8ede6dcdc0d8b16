// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package version

var (
	Version = "0.1.0"

	// GitSHA is the commit SHA value set during build
	GitSHA = "Not provided (use -ldflags \"-X github.com/vmware/dr-promote/version.GitSHA=...\")"
)
