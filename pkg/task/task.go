// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package task

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/restore"
)

// Task is one step of bringing a database into service. The returned string
// is a short human readable outcome for reports.
type Task interface {
	Name() string
	Run(ctx context.Context, job *Job) (string, error)
}

// Job is the state shared by the tasks of one database.
type Job struct {
	Database string
	Log      logrus.FieldLogger

	// Set by ResolveLineageTask.
	Plan backup.Plan
	// Set by RestoreChainTask.
	Restore *restore.Result
	// Set by EnsureInfobaseTask.
	InfobaseID      string
	InfobaseCreated bool
}
