// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/task"
)

// ExecutionPlan is the ordered list of tasks bringing one database into service.
type ExecutionPlan struct {
	Name     string
	Database string
	Tasks    []task.Task
}

// DryRun is the lineage of one database as the plan command shows it.
type DryRun struct {
	Database string      `json:"database"`
	Plan     backup.Plan `json:"plan"`
	Error    string      `json:"error,omitempty"`
}
